package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/nosedive/ledger"
	"go.uber.org/zap"
)

// Patch kinds accepted by POST /patch.
const patchSetVotingInterval = "set_voting_interval"

var (
	errMissingCaller = errors.New("missing caller identity")
	errBadRequest    = errors.New("bad request")
)

type errorResponse struct {
	Error string `json:"error"`
}

type rateRequest struct {
	Rating *float32 `json:"rating"`
}

type patchRequest struct {
	Patches []map[string]json.RawMessage `json:"patches"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := s.ledger.Register(caller); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.Status(identityVar(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, st)
}

func (s *Server) timestamps(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	ts, err := s.ledger.RatingTimestamps(caller, identityVar(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ts)
}

func (s *Server) rate(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req rateRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Rating == nil {
		s.respondError(w, r, fmt.Errorf("%w: missing rating", errBadRequest))
		return
	}

	if err := s.ledger.Rate(caller, identityVar(r), *req.Rating); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	patches, err := decodePatches(req.Patches)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err = s.ledger.PatchState(caller, patches); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// policy responds with the throttle policy in effect, JSON null if
// throttling is disabled.
func (s *Server) policy(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.Policy()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func decodePatches(raw []map[string]json.RawMessage) ([]ledger.Patch, error) {
	res := make([]ledger.Patch, 0, len(raw))

	for i := range raw {
		if len(raw[i]) != 1 {
			return nil, fmt.Errorf("%w: patch #%d must have exactly one kind, got %d", errBadRequest, i, len(raw[i]))
		}

		for kind, body := range raw[i] {
			switch kind {
			case patchSetVotingInterval:
				var interval *ledger.ThrottlePolicy
				if err := json.Unmarshal(body, &interval); err != nil {
					return nil, fmt.Errorf("%w: patch #%d: %v", errBadRequest, i, err)
				}
				res = append(res, ledger.SetVotingInterval{Interval: interval})
			default:
				return nil, fmt.Errorf("%w: patch #%d: unknown kind %q", errBadRequest, i, kind)
			}
		}
	}

	return res, nil
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (ledger.Identity, bool) {
	id := r.Header.Get(s.callerHeader)
	if id == "" {
		s.respondError(w, r, errMissingCaller)
		return "", false
	}
	return ledger.Identity(id), true
}

func identityVar(r *http.Request) ledger.Identity {
	return ledger.Identity(mux.Vars(r)["identity"])
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode JSON body: %v", errBadRequest, err)
	}
	return nil
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidRating),
		errors.Is(err, ledger.ErrSelfRating):
		return http.StatusBadRequest
	case errors.Is(err, errMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrThrottled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	msg := err.Error()

	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}

	var te *ledger.ThrottledError
	if errors.As(err, &te) {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(te.Remaining.Seconds())), 10))
	}

	respondJSON(w, code, errorResponse{Error: msg})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
