package server

import (
	"net/http"
	"strings"

	"callscreen/internal/telephony"

	"go.opentelemetry.io/otel/attribute"
)

// voiceHandler is the per-turn telephony webhook. It always answers with
// TwiML, even for malformed or finalized calls; malformed requests get a
// silent hangup with status 400.
func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.obs.Tracer("callscreen.voice").Start(r.Context(), "voice.turn")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		span.RecordError(err)
		s.Logger.Warn("Rejected voice webhook with invalid form body", "error", err.Error())
		s.writeTwiMLStatus(w, telephony.SayAndHangup(""), http.StatusBadRequest)
		return
	}
	callID := strings.TrimSpace(r.PostForm.Get("CallSid"))
	if callID == "" {
		s.Logger.Warn("Rejected voice webhook without CallSid", "client_ip", getClientIP(r))
		s.writeTwiMLStatus(w, telephony.SayAndHangup(""), http.StatusBadRequest)
		return
	}
	speech := r.PostForm.Get("SpeechResult")
	span.SetAttributes(
		attribute.String("call.id", callID),
		attribute.Int("speech.length", len(speech)),
	)

	reply := s.dialog.OnTurn(ctx, callID, speech, s.now())

	var doc *telephony.Response
	switch {
	case reply.Hangup:
		doc = telephony.SayAndHangup(reply.Say)
	case reply.Listen:
		doc = telephony.GatherSpeech(reply.Say, telephony.VoicePath)
	default:
		doc = telephony.SayAndRedirect(reply.Say, telephony.VoicePath)
	}
	span.SetAttributes(attribute.Bool("call.hangup", reply.Hangup))
	s.writeTwiML(w, doc)
}

func (s *Server) writeTwiML(w http.ResponseWriter, doc *telephony.Response) {
	s.writeTwiMLStatus(w, doc, http.StatusOK)
}

func (s *Server) writeTwiMLStatus(w http.ResponseWriter, doc *telephony.Response, status int) {
	body, err := doc.Marshal()
	if err != nil {
		s.Logger.LogError(err, "Failed to render TwiML")
		http.Error(w, "Failed to render response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.Logger.LogError(err, "Failed to write TwiML response")
	}
}

// signatureMiddleware rejects webhook requests whose X-Twilio-Signature
// does not match when validation is enabled.
func (s *Server) signatureMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if !s.ValidateSignature {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeErrorResponse(w, "Invalid form body", err.Error(), http.StatusBadRequest)
			return
		}
		fullURL := strings.TrimRight(s.PublicURL, "/") + r.URL.RequestURI()
		if !telephony.ValidSignature(s.AuthToken, fullURL, r.PostForm, r.Header.Get(telephony.SignatureHeader)) {
			s.Logger.Warn("Rejected voice webhook with invalid signature",
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Invalid signature", "request signature does not match", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
