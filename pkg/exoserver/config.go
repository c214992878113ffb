package exoserver

import (
	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
)

const configFilename = "config.json"

type ServerConfigFile struct {
	ListenAddr    string `json:"listen_addr"`
	UploadDir     string `json:"upload_dir"`
	Blobstore     string `json:"blobstore"` // "localfs" | "s3"
	S3Opts        string `json:"s3_opts"`   // bucket:region:accessKeyId:secret
	Store         string `json:"store"`     // "redis" | "memory"
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	IDLength      int    `json:"id_length"`
	PoolSize      int    `json:"pool_size"` // 0 = host core count
}

// missing file is not an error - you get the defaults. fields absent from the
// file keep their defaults; unknown fields are rejected.
func readServerConfigFile() (*ServerConfigFile, error) {
	scf := &ServerConfigFile{
		ListenAddr: "0.0.0.0:8066",
		UploadDir:  "./uploads",
		Blobstore:  "localfs",
		Store:      "redis",
		RedisAddr:  "localhost:6379",
		IDLength:   10,
	}

	exists, err := fileexists.Exists(configFilename)
	if err != nil {
		return nil, err
	}

	if exists {
		if err := jsonfile.Read(configFilename, scf, true); err != nil {
			return nil, err
		}
	}

	return scf, nil
}
