// Package webhook implements the WebhookRouter component: it maps a dynamic
// request path to the active WebhookJob whose endpoint matches, wraps user
// code so it can observe the request and produce a response, and appends an
// ExecutionLog of the exchange.
package webhook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/r3elabs/execforge/internal/domain/executionlog"
	"github.com/r3elabs/execforge/internal/domain/webhookjob"
	"github.com/r3elabs/execforge/internal/execution"
	"github.com/r3elabs/execforge/pkg/logger"
)

// Store is the subset of storage.Store the router needs.
type Store interface {
	GetWebhookJobByEndpoint(ctx context.Context, endpoint string) (webhookjob.Job, error)
	TouchLastTriggered(ctx context.Context, id string, triggeredAt time.Time) error
	AppendLog(ctx context.Context, entry executionlog.Log) (executionlog.Log, error)
}

// Engine runs a job's wrapped code inside a sandbox.
type Engine interface {
	Execute(ctx context.Context, code string, packages []string, timeoutS int, boundSandbox string) (execution.Result, error)
}

// Router is the WebhookRouter component.
type Router struct {
	store  Store
	engine Engine
	log    *logger.Logger
}

// New constructs a Router.
func New(store Store, engine Engine, log *logger.Logger) *Router {
	return &Router{store: store, engine: engine, log: log}
}

// ServeHTTP implements the dynamic endpoint dispatch of spec.md §4.8.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	endpoint := req.URL.Path

	job, err := r.store.GetWebhookJobByEndpoint(ctx, endpoint)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	if !job.IsActive {
		http.NotFound(w, req)
		return
	}

	requestData, err := buildRequestData(req)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	wrapped := wrapCode(job.Code, requestData)
	timeout := job.TimeoutS
	if timeout == 0 {
		timeout = webhookjob.UnboundedTimeout
	}

	started := time.Now().UTC()
	result, execErr := r.engine.Execute(ctx, wrapped, job.PackageSet, timeout, job.BoundSandbox)

	responseData, parseErr := parseLastJSONLine(result.Output)

	entry := executionlog.Log{
		Parent:       executionlog.Parent{Kind: executionlog.ParentWebhook, ID: job.ID},
		Code:         job.Code,
		StartedAt:    started,
		RequestData:  requestData,
		ResponseData: responseData,
		SandboxID:    result.SandboxID,
	}

	switch {
	case execErr != nil:
		entry.Status = executionlog.StatusError
		entry.Error = execErr.Error()
		r.finish(ctx, job.ID, entry, started)
		http.Error(w, execErr.Error(), http.StatusInternalServerError)
		return
	case parseErr != nil:
		entry.Status = executionlog.StatusError
		entry.Error = parseErr.Error()
		r.finish(ctx, job.ID, entry, started)
		http.Error(w, parseErr.Error(), http.StatusInternalServerError)
		return
	default:
		entry.Status = result.Status()
		r.finish(ctx, job.ID, entry, started)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(responseData)
}

func (r *Router) finish(ctx context.Context, jobID string, entry executionlog.Log, triggeredAt time.Time) {
	if _, err := r.store.AppendLog(ctx, entry); err != nil {
		r.log.WithField("job", jobID).WithField("error", err.Error()).Warn("append webhook execution log failed")
	}
	if err := r.store.TouchLastTriggered(ctx, jobID, triggeredAt); err != nil {
		r.log.WithField("job", jobID).WithField("error", err.Error()).Warn("touch last_triggered failed")
	}
}

func buildRequestData(req *http.Request) (map[string]any, error) {
	headers := make(map[string]string, len(req.Header))
	for k := range req.Header {
		headers[k] = req.Header.Get(k)
	}
	query := make(map[string]string)
	for k := range req.URL.Query() {
		query[k] = req.URL.Query().Get(k)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	var bodyValue any = string(body)
	contentType := req.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") && len(body) > 0 {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			bodyValue = decoded
		}
	} else if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		if err := req.ParseForm(); err == nil {
			form := make(map[string]string)
			for k := range req.PostForm {
				form[k] = req.PostForm.Get(k)
			}
			bodyValue = form
		}
	}

	return map[string]any{
		"method":       req.Method,
		"headers":      headers,
		"query_params": query,
		"body":         bodyValue,
	}, nil
}

// wrapCode builds the wrapper script that exposes request_data to user code
// and prints response_data as JSON on a dedicated final line, per spec.md
// §4.8 steps 2-4.
func wrapCode(userCode string, requestData map[string]any) string {
	requestJSON, _ := json.Marshal(requestData)
	encoded := base64.StdEncoding.EncodeToString(requestJSON)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "import base64, json, traceback\n")
	fmt.Fprintf(&buf, "request_data = json.loads(base64.b64decode(%q))\n", encoded)
	fmt.Fprintf(&buf, "response_data = {}\n")
	fmt.Fprintf(&buf, "try:\n")
	for _, line := range strings.Split(userCode, "\n") {
		fmt.Fprintf(&buf, "    %s\n", line)
	}
	fmt.Fprintf(&buf, "except Exception as e:\n")
	fmt.Fprintf(&buf, "    response_data = {\"error\": str(e), \"timestamp\": __import__('time').time()}\n")
	fmt.Fprintf(&buf, "print(json.dumps(response_data))\n")
	return buf.String()
}

// parseLastJSONLine parses the last JSON object from captured stdout as the
// response body, per spec.md §4.8 step 6.
func parseLastJSONLine(output string) (map[string]any, error) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(line), &parsed); err == nil {
			return parsed, nil
		}
		return nil, fmt.Errorf("could not parse response_data from output")
	}
	return nil, fmt.Errorf("no output produced")
}
