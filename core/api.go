package core

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter assembles the read-only HTTP surface every long-running
// instance exposes alongside its RPC dataports: Prometheus metrics, the
// socket event-hub websocket, and a certificate-chain inspection route.
// None of this HTTP surface replaces the dataport/RPC contract — it is
// diagnostic tooling a deployment wires in front of a running context.
func NewHTTPRouter(hub *EventHub, parser *CertParser) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		r.Get("/events", hub.ServeHTTP)
	}
	if parser != nil {
		r.Post("/certs/inspect", inspectCertHandler(parser))
	}
	return r
}

type inspectRequest struct {
	Encoding   string `json:"encoding"`
	PEM        string `json:"pem,omitempty"`
	ExpectedCN string `json:"expected_cn,omitempty"`
}

type inspectResponse struct {
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`
}

// inspectCertHandler parses a single PEM certificate and reports its
// subject/issuer — a read-only convenience over CertParserCert.Attrib,
// not a chain verification endpoint.
func inspectCertHandler(parser *CertParser) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in inspectRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		cert, err := NewCertParserCert(parser.ctx, CertEncodingPEM, []byte(in.PEM))
		if err != nil {
			http.Error(w, "unparsable certificate", http.StatusBadRequest)
			return
		}
		subject, _ := cert.Attrib(CertAttribSubject)
		issuer, _ := cert.Attrib(CertAttribIssuer)
		_ = json.NewEncoder(w).Encode(inspectResponse{
			Subject: subject.(string),
			Issuer:  issuer.(string),
		})
	}
}
