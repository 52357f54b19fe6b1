// Package googletasks implements the ledger.Ledger interface using Google Tasks API.
//
// Google Tasks has no batch endpoint, so batches are applied one call at a time:
// BatchCreate returns the prefix created before a failure, and BatchMutate reports
// per-op outcomes.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"todosync/internal/config"
	"todosync/internal/ledger"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// Scope is the OAuth scope for Google Tasks.
	Scope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements ledger.Ledger using Google Tasks API.
type Client struct {
	svc     *tasks.Service
	listID  string
	limiter *rate.Limiter
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	// Load OAuth client config
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	// Load token
	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Create token source that auto-refreshes
	tokenSource := oauthConfig.TokenSource(ctx, &token)

	httpClient := oauth2.NewClient(ctx, tokenSource)

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}

	gt := cfg.Settings.GoogleTasks
	return newClient(svc, gt.ListID, gt.RequestsPerSecond), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, listID string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return newClient(svc, listID, 0), nil
}

// newClient builds a Client. A non-positive rps disables rate limiting.
func newClient(svc *tasks.Service, listID string, rps float64) *Client {
	if listID == "" {
		listID = DefaultListID
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		svc:     svc,
		listID:  listID,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// BatchCreate implements ledger.Ledger.
// Tasks are inserted one by one; on failure the tasks created so far are returned with the error.
func (c *Client) BatchCreate(ctx context.Context, contents []string) ([]ledger.Created, error) {
	if len(contents) == 0 {
		return nil, ledger.ErrEmptyBatch
	}

	created := make([]ledger.Created, 0, len(contents))
	for i, content := range contents {
		task, err := c.insert(ctx, content)
		if err != nil {
			return created, fmt.Errorf("create task %d: %w", i, err)
		}
		created = append(created, ledger.Created{ID: ledger.RemoteID(task.Id), Content: task.Title})
	}
	return created, nil
}

// BatchMutate implements ledger.Ledger.
// Every op is attempted; failures are reported per op.
func (c *Client) BatchMutate(ctx context.Context, ops []ledger.Op) (ledger.MutateResult, error) {
	if len(ops) == 0 {
		return ledger.MutateResult{}, ledger.ErrEmptyBatch
	}

	errs := make([]error, len(ops))
	failed := false
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return ledger.MutateResult{}, err
		}
		var err error
		switch op.Kind {
		case ledger.OpToggle:
			err = c.toggle(ctx, string(op.ID))
		case ledger.OpDelete:
			err = c.delete(ctx, string(op.ID))
		default:
			err = fmt.Errorf("unsupported kind %s", op.Kind)
		}
		if err != nil {
			errs[i] = err
			failed = true
		}
	}

	if !failed {
		return ledger.MutateResult{}, nil
	}
	return ledger.MutateResult{Errs: errs}, nil
}

// ListAll implements ledger.Ledger.
// Completed, hidden and deleted tasks are all included.
func (c *Client) ListAll(ctx context.Context) ([]ledger.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []ledger.Record
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowDeleted(true).
		ShowHidden(true).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, task := range resp.Items {
				result = append(result, ledger.Record{
					ID:        ledger.RemoteID(task.Id),
					Content:   task.Title,
					Completed: task.Status == statusCompleted,
					Deleted:   task.Deleted,
				})
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	return result, nil
}

func (c *Client) insert(ctx context.Context, title string) (*tasks.Task, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	task, err := c.svc.Tasks.Insert(c.listID, &tasks.Task{Title: title}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}
	return task, nil
}

// toggle flips a task between needsAction and completed.
func (c *Client) toggle(ctx context.Context, taskID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	getCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	current, err := c.svc.Tasks.Get(c.listID, taskID).Context(getCtx).Do()
	if err != nil {
		return wrapError(err)
	}
	if current.Deleted {
		return ledger.ErrUnknownTask
	}

	patch := &tasks.Task{Status: statusCompleted}
	if current.Status == statusCompleted {
		// Reopening requires clearing the completion timestamp.
		patch = &tasks.Task{Status: statusNeedsAction, NullFields: []string{"Completed"}}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	patchCtx, cancelPatch := context.WithTimeout(ctx, APITimeout)
	defer cancelPatch()

	if _, err := c.svc.Tasks.Patch(c.listID, taskID, patch).Context(patchCtx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, taskID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(c.listID, taskID).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", err)
	}

	// Check for auth errors
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("token expired or revoked (run: todosync login): %w", err)
	}

	// Check for not found
	if strings.Contains(errStr, "404") {
		return fmt.Errorf("%w: %w", ledger.ErrUnknownTask, err)
	}

	return err
}
