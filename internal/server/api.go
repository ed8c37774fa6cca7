package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/trnscrb/trnscrb/internal/calendar"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/orchestrator/events"
	"github.com/trnscrb/trnscrb/internal/trace"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

type stopRequest struct {
	Name string `json:"name"`
}

type transcriptResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type calendarResponse struct {
	Event   *calendar.Event `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
}

type eventsResponse struct {
	Events  []events.Event `json:"events"`
	Dropped uint64         `json:"dropped"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	resp := errorResponse{Error: err.Error(), Code: code.String()}
	if tc, ok := trace.FromContext(r.Context()); ok {
		resp.TraceID = tc.TraceID
	}
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

// httpStatus maps an error code to the HTTP status a client sees.
func httpStatus(c apperrors.Code) int {
	switch c {
	case apperrors.InvalidArgument, apperrors.ConfigInvalid:
		return http.StatusBadRequest
	case apperrors.NotFound:
		return http.StatusNotFound
	case apperrors.AlreadyProcessing:
		return http.StatusConflict
	case apperrors.Unavailable, apperrors.DeviceUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Recorder.Snapshot())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	msg, err := s.opts.Recorder.StartRecording(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, apperrors.Wrap(err, apperrors.InvalidArgument, "decode request body"))
		return
	}
	msg, err := s.opts.Recorder.StopRecording(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleWatchStart(w http.ResponseWriter, r *http.Request) {
	s.opts.Recorder.StartWatching(s.opts.BaseContext)
	writeJSON(w, http.StatusOK, s.opts.Recorder.Snapshot().Watcher)
}

func (s *Server) handleWatchStop(w http.ResponseWriter, r *http.Request) {
	s.opts.Recorder.StopWatching()
	writeJSON(w, http.StatusOK, s.opts.Recorder.Snapshot().Watcher)
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.opts.Transcripts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLastTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: s.opts.Recorder.LastTranscript()})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := s.opts.Transcripts.Read(id)
	if err != nil {
		if apperrors.IsCode(err, apperrors.NotFound) {
			err = apperrors.Newf(apperrors.NotFound, msgNotFoundFmt, id)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{ID: id, Text: text})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Recorder.Enrich(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.opts.Calendar.Current(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, calendarResponse{Message: msgNoEvent})
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Event: &ev})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := s.opts.Devices()
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.DeviceUnavailable, "list input devices"))
		return
	}
	writeJSON(w, http.StatusOK, devs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := s.opts.Recorder.Events()
	resp := eventsResponse{Dropped: log.Dropped()}
	if v := r.URL.Query().Get("since"); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid since %q", v))
			return
		}
		resp.Events = log.Since(seq)
	} else {
		resp.Events = log.Recent(0)
	}
	if resp.Events == nil {
		resp.Events = []events.Event{}
	}
	writeJSON(w, http.StatusOK, resp)
}
