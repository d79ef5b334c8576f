package edge

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"traffic-decision-engine/internal/classify"
	"traffic-decision-engine/internal/exec"
)

// DecisionHandler runs the full decision path for every incoming request:
// classify, match, execute. Pass forwards to the configured upstream
// unmodified; without an upstream a pass answers 200 so the edge can run
// standalone in front of nothing (useful in tests and canaries).
type DecisionHandler struct {
	Executor *exec.Executor
	Opts     classify.Options
	proxy    *httputil.ReverseProxy
}

func NewDecisionHandler(ex *exec.Executor, opts classify.Options, upstream string) (*DecisionHandler, error) {
	h := &DecisionHandler{Executor: ex, Opts: opts}
	if upstream != "" {
		u, err := url.Parse(upstream)
		if err != nil {
			return nil, err
		}
		h.proxy = httputil.NewSingleHostReverseProxy(u)
	}
	return h, nil
}

func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := classify.Classify(r, h.Opts)

	switch d := h.Executor.Decide(ctx); d.Outcome {
	case exec.OutcomeBlock:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case exec.OutcomeRedirect:
		http.Redirect(w, r, d.URL, d.StatusCode)
	default:
		if h.proxy != nil {
			h.proxy.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
