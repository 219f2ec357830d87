package media

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/proxy"
	"github.com/swinglab/mediacore/internal/response"
	"github.com/swinglab/mediacore/internal/storage"
	"github.com/swinglab/mediacore/internal/thumbnail"
)

const multipartMemory = 32 << 20

// Handler holds HTTP handlers for media endpoints.
type Handler struct {
	svc       *Service
	maxUpload int64
}

// NewHandler creates a new media Handler. maxUpload caps request bodies.
func NewHandler(svc *Service, maxUpload int64) *Handler {
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// Routes mounts the media endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/videos", h.UploadVideo)
	r.Post("/images", h.UploadImage)
	r.Put("/images/{key}", h.PutImage)
	r.Post("/markup", h.UploadMarkup)
	r.Post("/frames", h.CaptureFrame)
	r.Get("/url", h.SignedURL)
	r.Delete("/", h.Delete)
}

// UploadVideo godoc
//
//	@Summary		Upload a video
//	@Description	Stores the video under a unique key and derives its thumbnail in the background.
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Video file"
//	@Param			owner_id	formData	string	true	"Uploader identifier used in the object key"
//	@Success		201			{object}	response.Envelope{data=VideoUpload}
//	@Failure		400			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/media/videos [post]
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := h.readFile(w, r, storage.Video)
	if !ok {
		return
	}
	res, err := h.svc.UploadVideo(r.Context(), data, filename, r.FormValue("owner_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, res)
}

// UploadImage godoc
//
//	@Summary		Upload an image
//	@Description	Stores the image under a unique key.
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Image file"
//	@Param			owner_id	formData	string	true	"Uploader identifier used in the object key"
//	@Success		201			{object}	response.Envelope{data=storage.StoredObject}
//	@Failure		400			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/media/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := h.readFile(w, r, storage.Image)
	if !ok {
		return
	}
	obj, err := h.svc.UploadImage(r.Context(), data, filename, r.FormValue("owner_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, obj)
}

// PutImage godoc
//
//	@Summary		Store an image under an exact key
//	@Description	Stores the image under the given key, replacing any existing object. Accepts a multipart file or a raw body.
//	@Tags			media
//	@Accept			multipart/form-data,image/jpeg
//	@Produce		json
//	@Param			key		path		string	true	"Object key"
//	@Param			file	formData	file	false	"Image file"
//	@Success		200		{object}	response.Envelope{data=storage.StoredObject}
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/media/images/{key} [put]
func (h *Handler) PutImage(w http.ResponseWriter, r *http.Request) {
	var data []byte
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		var ok bool
		if data, _, ok = h.readFile(w, r, storage.Image); !ok {
			return
		}
	} else {
		if err := storage.ValidateDeclaredType(storage.Image, r.Header.Get("Content-Type")); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		var err error
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
		if err != nil {
			h.writeBodyError(w, err)
			return
		}
	}
	if len(data) == 0 {
		response.BadRequest(w, "empty image")
		return
	}

	obj, err := h.svc.PutImage(r.Context(), data, chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, obj)
}

type markupResponse struct {
	*storage.StoredObject
	OriginalURL string `json:"original_url,omitempty"`
}

// UploadMarkup godoc
//
//	@Summary		Upload an annotated image
//	@Description	Decodes base64 image data (raw or a data URL) and stores it under the given filename.
//	@Tags			media
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			image_data		formData	string	true	"Base64 image data"
//	@Param			filename		formData	string	true	"Object key"
//	@Param			original_url	formData	string	false	"URL of the image that was annotated"
//	@Success		201				{object}	response.Envelope{data=storage.StoredObject}
//	@Failure		400				{object}	response.Envelope
//	@Failure		500				{object}	response.Envelope
//	@Router			/media/markup [post]
func (h *Handler) UploadMarkup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeBodyError(w, err)
		return
	}
	imageData, filename := r.FormValue("image_data"), r.FormValue("filename")
	if imageData == "" || filename == "" {
		response.BadRequest(w, "image_data and filename are required")
		return
	}

	obj, err := h.svc.UploadMarkup(r.Context(), imageData, filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, markupResponse{StoredObject: obj, OriginalURL: r.FormValue("original_url")})
}

// CaptureFrame godoc
//
//	@Summary		Capture a video frame
//	@Description	Extracts the frame of a stored video at time_seconds and stores it as an image.
//	@Tags			media
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			video_url		formData	string	true	"Canonical video URL or key"
//	@Param			time_seconds	formData	number	true	"Offset in seconds"
//	@Param			filename		formData	string	false	"Object key for the frame"
//	@Success		201				{object}	response.Envelope{data=FrameCapture}
//	@Failure		400				{object}	response.Envelope
//	@Failure		404				{object}	response.Envelope
//	@Failure		413				{object}	response.Envelope
//	@Failure		500				{object}	response.Envelope
//	@Router			/media/frames [post]
func (h *Handler) CaptureFrame(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeBodyError(w, err)
		return
	}
	videoURL := r.FormValue("video_url")
	if videoURL == "" {
		response.BadRequest(w, "video_url is required")
		return
	}
	seconds, err := strconv.ParseFloat(r.FormValue("time_seconds"), 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		response.BadRequest(w, "time_seconds must be a non-negative number")
		return
	}

	at := time.Duration(seconds * float64(time.Second))
	res, err := h.svc.CaptureFrame(r.Context(), videoURL, at, r.FormValue("filename"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, res)
}

type signedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignedURL godoc
//
//	@Summary		Issue a signed URL
//	@Description	Returns a short-lived read-only URL for a stored object.
//	@Tags			media
//	@Produce		json
//	@Param			ref	query		string	false	"Canonical object URL"
//	@Param			key	query		string	false	"Object key"
//	@Success		200	{object}	response.Envelope{data=signedURLResponse}
//	@Failure		400	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/media/url [get]
func (h *Handler) SignedURL(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		ref = r.URL.Query().Get("key")
	}
	if ref == "" {
		response.BadRequest(w, "ref or key is required")
		return
	}

	grant, err := h.svc.SignedURL(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoStore(w, signedURLResponse{URL: grant.URL, ExpiresAt: grant.ExpiresAt})
}

// Delete godoc
//
//	@Summary		Delete a stored object
//	@Description	Deletes the object named by url. With with_thumbnail=true the derived thumbnail is deleted too. Absent objects report deleted=false.
//	@Tags			media
//	@Produce		json
//	@Param			url				query		string	true	"Canonical object URL or key"
//	@Param			with_thumbnail	query		bool	false	"Also delete the derived thumbnail"
//	@Success		200				{object}	response.Envelope{data=DeleteResult}
//	@Failure		400				{object}	response.Envelope
//	@Router			/media [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("url")
	if ref == "" {
		response.BadRequest(w, "url is required")
		return
	}
	withThumb, _ := strconv.ParseBool(r.URL.Query().Get("with_thumbnail"))
	response.OK(w, h.svc.Delete(r.Context(), ref, withThumb))
}

// readFile parses a multipart upload and returns the "file" part, checking
// its declared content type against kind.
func (h *Handler) readFile(w http.ResponseWriter, r *http.Request, kind storage.MediaKind) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeBodyError(w, err)
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return nil, "", false
	}
	defer file.Close()

	if err := storage.ValidateDeclaredType(kind, header.Header.Get("Content-Type")); err != nil {
		response.BadRequest(w, err.Error())
		return nil, "", false
	}
	data, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(w)
		return nil, "", false
	}
	if len(data) == 0 {
		response.BadRequest(w, "file is empty")
		return nil, "", false
	}
	return data, header.Filename, true
}

func (h *Handler) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.TooLarge(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	response.BadRequest(w, "invalid request body")
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidMediaType),
		errors.Is(err, storage.ErrInvalidIdentifier),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrInvalidReference),
		errors.Is(err, ErrInvalidImageData),
		errors.Is(err, ErrInvalidOffset):
		response.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrObjectNotFound):
		response.NotFound(w, "media not found")
	case errors.Is(err, ErrClosed):
		response.ServiceUnavailable(w, "shutting down")
	case errors.Is(err, thumbnail.ErrExtractionFailed), errors.Is(err, proxy.ErrUpstreamFetchFailed):
		logging.WithContext(r.Context()).Error("media request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "frame capture failed")
	default:
		logging.WithContext(r.Context()).Error("media request failed", zap.String("path", r.URL.Path), zap.Error(err))
		response.InternalError(w)
	}
}
