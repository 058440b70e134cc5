package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablegate/tablegate/internal/auth"
	"github.com/tablegate/tablegate/internal/models"
	"github.com/tablegate/tablegate/internal/ratelimit"
	pkglogger "github.com/tablegate/tablegate/pkg/logger"
)

// Gateway action names. The set is fixed; anything else is rejected before
// params are even parsed.
const (
	ActionGetMenu            = "get_menu"
	ActionGetCustomerHistory = "get_customer_history"
	ActionGetAddons          = "get_addons"
	ActionCreateOrder        = "create_order"
	ActionLogMessage         = "log_message"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// GatewayStore is the storage surface the gateway executes against. Stage 5
// of the pipeline is the only place it is touched; no request reaches it
// before authentication, rate limiting and validation have all passed.
type GatewayStore interface {
	ListMenu(ctx context.Context) ([]models.MenuItem, error)
	GetCustomerHistory(ctx context.Context, userID string, limit int) ([]models.Order, error)
	ListAddons(ctx context.Context, productID, category string) ([]models.Addon, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	LogMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
}

// GatewayRequest is the wire envelope for machine calls.
type GatewayRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// RateLimitedError carries the remaining window time so the transport layer
// can set Retry-After.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return models.ErrRateLimited
}

// GatewayGuard runs every inbound machine request through a strictly ordered
// pipeline: authenticate, rate-limit, parse, validate, execute. Each stage
// short-circuits; a request that fails stage N never reaches stage N+1.
type GatewayGuard struct {
	secretHash string
	limiter    ratelimit.Store
	store      GatewayStore
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
}

// NewGatewayGuard creates a new GatewayGuard. The shared secret is hashed
// once at construction; requests are compared hash-to-hash in constant time.
func NewGatewayGuard(secret string, limiter ratelimit.Store, store GatewayStore, logger *slog.Logger, audit *pkglogger.AuditLogger) *GatewayGuard {
	return &GatewayGuard{
		secretHash: auth.HashSecret(secret),
		limiter:    limiter,
		store:      store,
		logger:     logger,
		audit:      audit,
	}
}

// Handle runs one request through the pipeline and returns the action's data
// payload. callerIP identifies the caller for rate limiting and audit.
func (g *GatewayGuard) Handle(ctx context.Context, providedSecret, callerIP string, body []byte) (any, error) {
	// Stage 1: authenticate before anything else. No parsing, no counting.
	if !auth.ConstantTimeHashCompare(g.secretHash, auth.HashSecret(providedSecret)) {
		g.audit.LogGatewayRejection("invalid_secret", callerIP, "")
		return nil, models.ErrUnauthorized
	}

	// Stage 2: per-caller fixed window. Store errors fail open; availability
	// of the ordering flow wins over strict limiting, but the anomaly is
	// logged so an operator can see a degraded limiter.
	decision, err := g.limiter.Allow(ctx, callerIP)
	if err != nil {
		g.audit.LogSecurityAnomaly("rate_limit_store_failed", err, map[string]string{
			"caller_ip": callerIP,
		})
	} else if !decision.Allowed {
		g.audit.LogGatewayRejection("rate_limited", callerIP, "")
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	// Stage 3: parse the envelope and dispatch on the action name.
	var req GatewayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		g.audit.LogGatewayRejection("malformed_body", callerIP, "")
		return nil, fmt.Errorf("%w: malformed request body", models.ErrBadRequest)
	}

	handler, ok := g.actionHandler(req.Action)
	if !ok {
		g.audit.LogGatewayRejection("unknown_action", callerIP, req.Action)
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownAction, req.Action)
	}

	// Stages 4 and 5 live inside the handler: validate every parameter, then
	// and only then touch storage.
	data, err := handler(ctx, req.Params)
	if err != nil {
		if fe, ok := models.AsFieldError(err); ok {
			g.audit.LogGatewayRejection("invalid_params:"+fe.Field, callerIP, req.Action)
			return nil, err
		}
		if errors.Is(err, models.ErrBadRequest) {
			g.audit.LogGatewayRejection("invalid_params", callerIP, req.Action)
			return nil, err
		}
		g.logger.Error("gateway action failed",
			slog.String("action", req.Action),
			slog.String("caller_ip", callerIP),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s", models.ErrUpstreamFailure, req.Action)
	}

	return data, nil
}

type actionFunc func(ctx context.Context, params json.RawMessage) (any, error)

func (g *GatewayGuard) actionHandler(action string) (actionFunc, bool) {
	switch action {
	case ActionGetMenu:
		return g.getMenu, true
	case ActionGetCustomerHistory:
		return g.getCustomerHistory, true
	case ActionGetAddons:
		return g.getAddons, true
	case ActionCreateOrder:
		return g.createOrder, true
	case ActionLogMessage:
		return g.logMessage, true
	}
	return nil, false
}

// decodeParams unmarshals params into a typed struct, treating an absent
// params object as empty.
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		params = []byte("{}")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return fmt.Errorf("%w: malformed params", models.ErrBadRequest)
	}
	return nil
}

func (g *GatewayGuard) getMenu(ctx context.Context, _ json.RawMessage) (any, error) {
	items, err := g.store.ListMenu(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": items}, nil
}

type customerHistoryParams struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

func (g *GatewayGuard) getCustomerHistory(ctx context.Context, params json.RawMessage) (any, error) {
	var p customerHistoryParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := ValidateIdentifier("user_id", p.UserID); err != nil {
		return nil, err
	}
	if p.Limit < 0 || p.Limit > maxHistoryLimit {
		return nil, models.NewFieldError("limit", "must be between 0 and 50")
	}
	if p.Limit == 0 {
		p.Limit = defaultHistoryLimit
	}

	orders, err := g.store.GetCustomerHistory(ctx, p.UserID, p.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"orders": orders}, nil
}

type addonsParams struct {
	ProductID string `json:"product_id"`
	Category  string `json:"category"`
}

func (g *GatewayGuard) getAddons(ctx context.Context, params json.RawMessage) (any, error) {
	var p addonsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := ValidateIdentifier("product_id", p.ProductID); err != nil {
		return nil, err
	}
	// Category is optional. When present it is format-checked and sanitized;
	// the repository still binds it as a parameter.
	if p.Category != "" {
		if err := ValidateLabel("category", p.Category); err != nil {
			return nil, err
		}
		p.Category = SanitizeFilterValue(p.Category)
	}

	addons, err := g.store.ListAddons(ctx, p.ProductID, p.Category)
	if err != nil {
		return nil, err
	}
	return map[string]any{"addons": addons}, nil
}

type createOrderParams struct {
	UserID        string             `json:"user_id"`
	CustomerPhone string             `json:"customer_phone"`
	Items         []models.OrderItem `json:"items"`
	TotalCents    int                `json:"total_cents"`
}

func (g *GatewayGuard) createOrder(ctx context.Context, params json.RawMessage) (any, error) {
	var p createOrderParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := ValidateIdentifier("user_id", p.UserID); err != nil {
		return nil, err
	}
	if err := ValidatePhone("customer_phone", p.CustomerPhone); err != nil {
		return nil, err
	}
	if len(p.Items) == 0 {
		return nil, models.NewFieldError("items", "must contain at least one item")
	}
	for i, item := range p.Items {
		if err := ValidateIdentifier(fmt.Sprintf("items[%d].product_id", i), item.ProductID); err != nil {
			return nil, err
		}
		if item.Quantity < 1 {
			return nil, models.NewFieldError(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
	}
	if p.TotalCents < 0 {
		return nil, models.NewFieldError("total_cents", "must not be negative")
	}

	order, err := g.store.CreateOrder(ctx, &models.Order{
		UserID:        p.UserID,
		CustomerPhone: p.CustomerPhone,
		Items:         p.Items,
		TotalCents:    p.TotalCents,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"order": order}, nil
}

type logMessageParams struct {
	UserID    string `json:"user_id"`
	Phone     string `json:"phone"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
}

func (g *GatewayGuard) logMessage(ctx context.Context, params json.RawMessage) (any, error) {
	var p logMessageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	if err := ValidateIdentifier("user_id", p.UserID); err != nil {
		return nil, err
	}
	if err := ValidatePhone("phone", p.Phone); err != nil {
		return nil, err
	}
	if p.Direction != "inbound" && p.Direction != "outbound" {
		return nil, models.NewFieldError("direction", "must be inbound or outbound")
	}
	if err := ValidateText("body", p.Body); err != nil {
		return nil, err
	}

	msg, err := g.store.LogMessage(ctx, &models.ChatMessage{
		UserID:    p.UserID,
		Phone:     p.Phone,
		Direction: p.Direction,
		Body:      p.Body,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": msg}, nil
}
