package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
)

const (
	replyOK       = "OK:KDLAB"
	replyNextMove = "NEXT_MOVE"

	maxPacketSize = 1 << 20
)

var (
	errBadSyntax = errors.New("parse body failed (syntax)")
	errBadUTF8   = errors.New("parse body failed (utf-8)")
)

// handleInfo answers a client's first connection with the control snapshot.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	gameID, err := queryUint(r, "ID", "game_id")
	if err != nil {
		respondText(w, http.StatusBadRequest, err.Error())
		return
	}
	pid, err := queryUint(r, "USERID", "player_id")
	if err != nil {
		respondText(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.service.Info(r.Context(), gameID, pid)
	if err != nil {
		respondKDLABError(w, r, err)
		return
	}

	respondPacket(w, info)
}

// handlePacket dispatches a posted packet by type.
func (s *Server) handlePacket(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondText(w, http.StatusBadRequest, err.Error())
		return
	}
	log.WithField("body", body).Trace("packet in")

	p, ok := kdlab.Decode(body)
	if !ok {
		respondText(w, http.StatusBadRequest, errBadSyntax.Error())
		return
	}

	logger := log.WithFields(log.Fields{
		"request_id":  requestID(r.Context()),
		"game_id":     p.GameID,
		"pid":         p.SenderPID,
		"packet_type": p.Type,
	})

	ctx := r.Context()
	switch p.Type {
	case kdlab.ControlPacket:
		if err := s.service.Control(ctx, p); err != nil {
			respondKDLABError(w, r, err)
			return
		}
	case kdlab.SeedsPacket:
		if err := s.service.Seeds(ctx, p); err != nil {
			if errors.Is(err, engine.ErrIncorrectIncomeSteps) {
				logger.WithError(err).Warn("seeds rejected, asking client for the next move")
				respondText(w, http.StatusOK, replyNextMove)
				return
			}
			respondKDLABError(w, r, err)
			return
		}
	case kdlab.RefreshPacket:
		answer, err := s.service.Refresh(ctx, p)
		if err != nil {
			respondKDLABError(w, r, err)
			return
		}
		respondPacket(w, answer)
		return
	default:
		logger.WithField("packet", fmt.Sprintf("%+v", p)).Warn("unhandled packet type")
	}

	respondText(w, http.StatusOK, replyOK)
}

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPacketSize))
	if err != nil {
		return "", fmt.Errorf("read body failed: %w", err)
	}
	if !utf8.Valid(data) {
		return "", errBadUTF8
	}
	return string(data), nil
}

// queryUint reads the first present parameter among names.
func queryUint(r *http.Request, names ...string) (uint32, error) {
	q := r.URL.Query()
	for _, name := range names {
		if !q.Has(name) {
			continue
		}
		v, err := strconv.ParseUint(q.Get(name), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %q", name, q.Get(name))
		}
		return uint32(v), nil
	}
	return 0, fmt.Errorf("missing %s parameter", names[0])
}

func respondPacket(w http.ResponseWriter, p *kdlab.Packet) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, kdlab.Encode(p))
}

func respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, text)
}

// respondKDLABError writes the error page legacy clients get.
func respondKDLABError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := log.WithError(err).WithFields(log.Fields{
		"request_id": requestID(r.Context()),
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("packet failed")
	} else {
		entry.Warn("packet rejected")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, "Error occurred: "+err.Error())
}
