package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/repository"
	"github.com/elsanchez/insta-checker/internal/rotation"
)

// maxUploadSize limita el tamaño de los CSV subidos
const maxUploadSize = 5 << 20 // 5 MiB

// Handlers implementa los endpoints HTTP del daemon
type Handlers struct {
	jobRepo repository.JobRepository
	rotator *rotation.Rotator
	queue   *QueueManager
	paths   Paths
}

// NewHandlers crea un nuevo conjunto de handlers
func NewHandlers(jobRepo repository.JobRepository, rotator *rotation.Rotator,
	queue *QueueManager, paths Paths) *Handlers {
	return &Handlers{
		jobRepo: jobRepo,
		rotator: rotator,
		queue:   queue,
		paths:   paths,
	}
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: raw})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{Success: false, Error: err.Error()})
}

// jobView es la proyección de un trabajo que ven los clientes
type jobView struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	Total            int        `json:"total"`
	CurrentAccount   string     `json:"current_account,omitempty"`
	InstagramAccount string     `json:"instagram_account,omitempty"`
	ResultFile       string     `json:"result_file,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func toView(j *domain.Job) jobView {
	view := jobView{
		ID:               j.ID,
		Filename:         j.Filename,
		Status:           string(j.Status),
		Progress:         j.Progress,
		Total:            j.Total,
		CurrentAccount:   j.CurrentAccount,
		InstagramAccount: j.InstagramAccount,
		ErrorMessage:     j.ErrorMessage,
		SubmittedAt:      j.SubmittedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
	if j.ResultFile != "" {
		view.ResultFile = filepath.Base(j.ResultFile)
	}
	return view
}

// HandleUpload recibe un CSV de cuentas objetivo por multipart y lo
// guarda con nombre saneado
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	name, err := SanitizeCSVName(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	dstPath, err := h.paths.ResolveUpload(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save upload: %w", err))
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save upload: %w", err))
		return
	}

	log.Printf("Upload saved: %s (%d bytes)", name, size)
	writeOK(w, map[string]interface{}{"filename": name, "size": size})
}

// startPayload es el cuerpo de POST /start
type startPayload struct {
	Filename string `json:"filename"`
}

// HandleStart encola un trabajo para un archivo ya subido
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	name, err := SanitizeCSVName(req.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	uploadPath, err := h.paths.ResolveUpload(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := os.Stat(uploadPath); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("upload not found: %s", name))
		return
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Filename:    name,
		Status:      domain.JobPending,
		SubmittedAt: time.Now(),
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("enqueue job: %w", err))
		return
	}

	log.Printf("Job %s queued: %s", job.ID, name)
	writeOK(w, toView(job))
}

// HandleQueue lista los trabajos pendientes y el trabajo en curso
func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	pending, err := h.jobRepo.GetPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("get queue: %w", err))
		return
	}

	views := make([]jobView, 0, len(pending))
	for _, j := range pending {
		views = append(views, toView(j))
	}

	resp := map[string]interface{}{
		"queued": views,
		"count":  len(views),
	}

	if id := h.queue.CurrentJob(); id != "" {
		if current, err := h.jobRepo.GetByID(r.Context(), id); err == nil {
			resp["running"] = toView(current)
		}
	}

	writeOK(w, resp)
}

// HandleCancel cancela un trabajo por ID (pendiente o en ejecución)
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id is required"))
		return
	}

	if err := h.queue.CancelJob(r.Context(), id); err != nil {
		status := http.StatusConflict
		if errors.Is(err, repository.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeOK(w, map[string]string{"id": id, "status": "cancelling"})
}

// HandleStop cancela el trabajo en ejecución, si hay uno
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.queue.StopCurrent()
	if !ok {
		writeError(w, http.StatusConflict, fmt.Errorf("no job is running"))
		return
	}
	writeOK(w, map[string]string{"id": id, "status": "cancelling"})
}

// HandleStatus expone el estado del daemon: trabajo en curso, cola,
// uso de cuentas y últimas líneas de log
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("get stats: %w", err))
		return
	}

	usage, err := h.rotator.Usage()
	if err != nil {
		log.Printf("Failed to read account usage: %v", err)
		usage = map[string]int{}
	}

	resp := map[string]interface{}{
		"jobs":                stats,
		"account_usage":       usage,
		"max_follows_per_day": h.rotator.MaxPerDay(),
		"log":                 h.queue.Logs().Lines(),
	}

	if id := h.queue.CurrentJob(); id != "" {
		if current, err := h.jobRepo.GetByID(r.Context(), id); err == nil {
			resp["running"] = toView(current)
		}
	}

	writeOK(w, resp)
}

// HandleJob retorna el detalle de un trabajo
func (h *Handlers) HandleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, toView(job))
}

// HandleListResults lista los archivos de resultados disponibles
func (h *Handlers) HandleListResults(w http.ResponseWriter, r *http.Request) {
	writeDirListing(w, h.paths.ResultsDir())
}

// HandleListUploads lista los archivos subidos
func (h *Handlers) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	writeDirListing(w, h.paths.UploadsDir())
}

func writeDirListing(w http.ResponseWriter, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			writeOK(w, map[string]interface{}{"files": []string{}, "count": 0})
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list dir: %w", err))
		return
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	writeOK(w, map[string]interface{}{"files": files, "count": len(files)})
}

// HandleDownloadResult sirve un archivo de resultados por nombre
func (h *Handlers) HandleDownloadResult(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := h.paths.ResolveResult(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("result not found: %s", name))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
