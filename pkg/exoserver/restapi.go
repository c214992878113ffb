package exoserver

import (
	"io"
	"net/http"

	"github.com/function61/exohost/pkg/exoregistry"
	"github.com/function61/exohost/pkg/exotypes"
	"github.com/function61/exohost/pkg/logtee"
	"github.com/function61/exohost/pkg/ratemeter"
	"github.com/function61/gokit/logex"
	"github.com/gorilla/mux"
)

// multipart bodies larger than this spill to temp files
const uploadMemoryLimit = 32 * 1024 * 1024

type handlers struct {
	registry *exoregistry.Registry
	meters   *ratemeter.Collection
	logTail  *logtee.StringTail
	workerId string
	logl     *logex.Leveled
}

func (h *handlers) defineRoutes(router *mux.Router) {
	router.HandleFunc("/", h.uploadForm).Methods(http.MethodGet)
	router.HandleFunc("/upload", h.upload).Methods(http.MethodPost)
	router.HandleFunc("/view", h.view).Methods(http.MethodGet)
	router.HandleFunc("/download", h.download).Methods(http.MethodGet)
	router.HandleFunc("/statistics", h.statistics).Methods(http.MethodGet)
	router.HandleFunc("/metric", h.metric).Methods(http.MethodGet)
	router.Handle("/metrics", h.meters.MetricsHTTPHandler()).Methods(http.MethodGet)
	router.HandleFunc("/logs", h.logs).Methods(http.MethodGet)
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, `missing file field "image"`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	id, err := h.registry.Create(r.Context(), file, header.Filename, exotypes.AssetFields{
		Title: r.FormValue("title"),
		Owner: r.FormValue("owner"),
	})
	if err != nil {
		h.logl.Error.Printf("upload: %v", err)

		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")

	_ = outJson(w, struct {
		AssetID string `json:"assetID"`
	}{id})

	h.logl.Info.Printf("worker %s processed %s", h.workerId, id)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	h.serveAsset(w, r, false)
}

func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	h.serveAsset(w, r, true)
}

func (h *handlers) serveAsset(w http.ResponseWriter, r *http.Request, asDownload bool) {
	uid := r.URL.Query().Get("uid")

	content, blobName, err := h.registry.Open(r.Context(), uid)
	if err != nil {
		if err == exotypes.ErrAssetNotFound {
			http.Error(w, "asset does not exist", http.StatusNotFound)
		} else {
			h.logl.Error.Printf("serve %s: %v", uid, err)

			http.Error(w, "asset fetch failed", http.StatusInternalServerError)
		}
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentTypeForFilename(blobName))

	if asDownload {
		w.Header().Set("Content-Disposition", `attachment; filename="`+blobName+`"`)
	}

	// asset confirmed to exist => safe to count. counting must never fail the
	// serving, so these don't return errors.
	if asDownload {
		h.registry.RecordDownload(r.Context(), uid)
	} else {
		h.registry.RecordView(r.Context(), uid)
	}

	if _, err := io.Copy(w, content); err != nil {
		// client hangups end up here; nothing user-visible left to do
		h.logl.Debug.Printf("serve %s: %v", uid, err)
	}
}

func (h *handlers) statistics(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")

	stats, err := h.registry.Statistics(r.Context(), uid)
	if err != nil {
		if err == exotypes.ErrAssetNotFound {
			http.Error(w, "asset does not exist", http.StatusNotFound)
		} else {
			h.logl.Error.Printf("statistics %s: %v", uid, err)

			http.Error(w, "statistics read failed", http.StatusInternalServerError)
		}
		return
	}

	_ = outJson(w, stats)
}

// this worker's rate meter readings. per-worker by design - pool-wide rates
// are aggregated by whoever scrapes, not here.
func (h *handlers) metric(w http.ResponseWriter, r *http.Request) {
	_ = outJson(w, h.meters.Snapshot())
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	_ = outJson(w, h.logTail.Snapshot())
}

func (h *handlers) uploadForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	_, _ = w.Write([]byte(`<form method="post" action="/upload" enctype="multipart/form-data">
	<p>Image: <input type="file" name="image" /></p>
	<p>Title: <input type="text" name="title" /></p>
	<p>Owner: <input type="text" name="owner" /></p>
	<p><input type="submit" value="Upload" /></p>
</form>
`))
}
