package exoserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"

	"github.com/function61/exohost/pkg/blobstore"
	"github.com/function61/exohost/pkg/blobstore/localfsblobstore"
	"github.com/function61/exohost/pkg/blobstore/s3blobstore"
	"github.com/function61/exohost/pkg/exoregistry"
	"github.com/function61/exohost/pkg/logtee"
	"github.com/function61/exohost/pkg/poolsupervisor"
	"github.com/function61/exohost/pkg/ratemeter"
	"github.com/function61/exohost/pkg/registrystore"
	"github.com/function61/exohost/pkg/registrystore/memregistrystore"
	"github.com/function61/exohost/pkg/registrystore/redisregistrystore"
	"github.com/function61/gokit/httputils"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/taskrunner"
	"github.com/gorilla/mux"
)

// the supervisor process: forks the worker pool and keeps it at size until
// ctx cancel. it serves no requests itself.
func runSupervisor(ctx context.Context, logger *log.Logger) error {
	conf, err := readServerConfigFile()
	if err != nil {
		return err
	}

	size := conf.PoolSize
	if size == 0 {
		size = runtime.NumCPU()
	}

	if conf.Store == "memory" && size > 1 {
		// per-process store means the workers would not see each other's
		// assets - refuse to pretend otherwise
		logex.Levels(logger).Info.Printf("memory store configured; clamping pool size %d -> 1", size)
		size = 1
	}

	pool := poolsupervisor.New(
		[]string{os.Args[0], "server", "worker"},
		size,
		logger)

	return pool.Run(ctx)
}

// one worker process: its own registry + rate meters against the shared
// store, serving HTTP on the pool's shared port (SO_REUSEPORT)
func runWorker(ctx context.Context, rootLogger *log.Logger, logTail *logtee.StringTail) error {
	logl := logex.Levels(rootLogger)

	conf, err := readServerConfigFile()
	if err != nil {
		return err
	}

	workerId := os.Getenv(poolsupervisor.WorkerSlotEnv)
	if workerId == "" {
		workerId = "0" // ran standalone, without a supervisor
	}

	store, err := makeStore(ctx, conf, rootLogger)
	if err != nil {
		return err
	}

	blobs, err := makeBlobstore(conf, rootLogger)
	if err != nil {
		return err
	}

	if err := blobs.Mountable(ctx); err != nil {
		return fmt.Errorf("blobstore: %v", err)
	}

	meters := ratemeter.NewCollection(workerId)

	registry := exoregistry.New(
		store,
		blobs,
		conf.IDLength,
		meters,
		logex.Prefix("registry", rootLogger))

	router := mux.NewRouter()

	han := &handlers{
		registry: registry,
		meters:   meters,
		logTail:  logTail,
		workerId: workerId,
		logl:     logex.Levels(logex.Prefix("restapi", rootLogger)),
	}
	han.defineRoutes(router)

	listener, err := listenReusePort(ctx, conf.ListenAddr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler: instrumentHTTPServer(router, meters.Registry(), workerId),
	}

	tasks := taskrunner.New(ctx, rootLogger)

	tasks.Start("ratemeter", meters.Task())

	tasks.Start("listener "+listener.Addr().String(), func(ctx context.Context) error {
		return httputils.RemoveGracefulServerClosedError(srv.Serve(listener))
	})

	tasks.Start("listenershutdowner", httputils.ServerShutdownTask(srv))

	logl.Info.Printf("worker %s serving on %s", workerId, conf.ListenAddr)

	return tasks.Wait()
}

func makeStore(ctx context.Context, conf *ServerConfigFile, logger *log.Logger) (registrystore.Store, error) {
	switch conf.Store {
	case "redis":
		store := redisregistrystore.New(
			conf.RedisAddr,
			conf.RedisPassword,
			conf.RedisDB,
			logex.Prefix("registrystore/redis", logger))

		// fail fast on a bad address instead of on the first request
		if err := store.Reachable(ctx); err != nil {
			return nil, err
		}

		return store, nil
	case "memory":
		return memregistrystore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", conf.Store)
	}
}

func makeBlobstore(conf *ServerConfigFile, logger *log.Logger) (blobstore.Driver, error) {
	switch conf.Blobstore {
	case "localfs":
		return localfsblobstore.New(
			conf.UploadDir,
			logex.Prefix("blobstore/localfs", logger)), nil
	case "s3":
		return s3blobstore.New(
			conf.S3Opts,
			logex.Prefix("blobstore/s3", logger))
	default:
		return nil, fmt.Errorf("unsupported blobstore: %s", conf.Blobstore)
	}
}
