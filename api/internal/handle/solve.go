package handle

import (
	"errors"
	"net/http"
	"strings"

	"jee-solver/api/internal/acquire"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/render"
	"jee-solver/api/internal/solver"
)

type SolveResponse struct {
	ConversationID string           `json:"conversation_id"`
	Empty          bool             `json:"empty"`
	Message        string           `json:"message,omitempty"`
	Segments       []render.Segment `json:"segments"`
	ExtractedText  string           `json:"extracted_text"`
	GatewayError   string           `json:"gateway_error,omitempty"`
	Cached         bool             `json:"cached"`
}

// Solve accepts multipart (or urlencoded) form fields image_file, image_url,
// question_text, conversation_id, engine, model. ?format=html adds rendered
// HTML per segment.
func (h *Handle) Solve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20) // +1MB for the other form fields
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil {
			jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	in := solver.SolveInput{
		ConversationID: r.FormValue("conversation_id"),
		QuestionText:   r.FormValue("question_text"),
		Engine:         r.FormValue("engine"),
		Model:          r.FormValue("model"),
	}

	var (
		im     acquire.Image
		hasImg bool
	)
	file, header, err := r.FormFile("image_file")
	switch {
	case err == nil:
		defer file.Close()
		im, err = h.acq.FromUpload(header.Filename, file)
		if err != nil {
			acquisitionError(w, err)
			return
		}
		hasImg = true
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		jsonError(w, "image_file: "+err.Error(), http.StatusBadRequest)
		return
	default:
		if ref := strings.TrimSpace(r.FormValue("image_url")); ref != "" {
			im, err = h.acq.Resolve(ctx, ref)
			if err != nil {
				acquisitionError(w, err)
				return
			}
			hasImg = true
		}
	}
	if hasImg {
		if im.IsPDF() {
			in.QuestionText = strings.TrimSpace(in.QuestionText + "\n\n" + im.Text)
		} else {
			in.Image, in.MIME = im.Data, im.MIME
		}
	}

	res, err := h.svc.Solve(ctx, in)
	if err != nil {
		h.serviceError(w, "solve", err)
		return
	}

	out := SolveResponse{
		ConversationID: res.ConversationID,
		Empty:          res.Document.Empty(),
		ExtractedText:  res.ExtractedText,
		Cached:         res.Cached,
	}
	if res.GatewayErr != nil {
		out.GatewayError = res.GatewayErr.Error()
	}
	if out.Empty {
		out.Message = render.NoContent
	}
	if r.URL.Query().Get("format") == "html" {
		out.Segments, err = render.Document(res.Document)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		out.Segments = make([]render.Segment, 0, len(res.Document.Segments))
		for _, s := range res.Document.Segments {
			out.Segments = append(out.Segments, render.Segment{Segment: s})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func acquisitionError(w http.ResponseWriter, err error) {
	kind, _ := acquire.KindOf(err)
	code := http.StatusBadRequest
	switch kind {
	case acquire.KindTooLarge:
		code = http.StatusRequestEntityTooLarge
	case acquire.KindFetch:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func (h *Handle) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, solver.ErrNoInput), errors.Is(err, solver.ErrEmptyMessage),
		errors.Is(err, gateway.ErrUnknownEngine), errors.Is(err, gateway.ErrModelSwitch):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error(op+" failed", "err", err)
		jsonError(w, op+" error: "+err.Error(), http.StatusInternalServerError)
	}
}
