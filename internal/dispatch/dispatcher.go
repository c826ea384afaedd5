package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

// Dispatcher is the single entry point for inbound updates: it normalizes,
// optionally aggregates self-forwards, enriches attachments, classifies, and
// routes each update to exactly one handler per scope. Handler failures are
// isolated and reported through the failure sink; they never reach the
// transport boundary.
type Dispatcher struct {
	cfg      config
	bot      *botapi.Client
	private  *tessen.Registry
	public   *tessen.Registry
	resolver *Resolver
	forwards *forwardAggregator
}

// New creates a dispatcher over one bot client and two scope registries.
// Either registry may be nil when a deployment serves only one scope.
func New(bot *botapi.Client, private, public *tessen.Registry, options ...Option) (*Dispatcher, error) {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}
	if cfg.gateway == nil {
		if bot == nil {
			return nil, fmt.Errorf("new dispatcher: nil bot client and no file gateway")
		}
		cfg.gateway = bot
	}

	resolver, err := NewResolver(cfg.gateway)
	if err != nil {
		return nil, fmt.Errorf("new dispatcher: %w", err)
	}

	dispatcher := &Dispatcher{
		cfg:      cfg,
		bot:      bot,
		private:  private,
		public:   public,
		resolver: resolver,
	}
	dispatcher.forwards = newForwardAggregator(cfg.quietPeriod, dispatcher.flushForwards)

	return dispatcher, nil
}

// Close flushes pending forward batches and stops their timers.
func (d *Dispatcher) Close() {
	d.forwards.Close()
}

// HandleUpdate routes one raw update. The returned error is the boundary
// contract: non-nil only for normalization failures and for enrichment
// failures that abort dispatch before classification.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update *botapi.Update) error {
	switch {
	case update == nil:
		return tessen.WithStatus(http.StatusBadRequest, tessen.ErrUnrecognizedUpdate)
	case update.ChannelPost != nil:
		return d.HandleChannelPost(ctx, update.ChannelPost)
	case update.CallbackQuery != nil:
		return d.HandleCallbackQuery(ctx, update.CallbackQuery)
	case update.InlineQuery != nil:
		return d.HandleInlineQuery(ctx, update.InlineQuery)
	}

	msg, err := tessen.Normalize(update)
	if err != nil {
		return tessen.WithStatus(http.StatusBadRequest, err)
	}

	if msg.SelfForward() {
		d.forwards.Add(msg.ChatID, msg)
		return nil
	}

	if err := d.resolver.Enrich(ctx, msg); err != nil {
		// Enrichment runs before classification, so no handler has been
		// selected yet and the failure surfaces at the boundary.
		return statusForEnrichment(err)
	}

	scope := msg.Scope()
	registry := d.registryFor(scope)
	event := classify(msg, registry.Rules())
	d.invoke(ctx, registry, scope, event, msg)

	return nil
}

// HandleChannelPost routes a channel post to the fixed channel_post event in
// the public registry, bypassing classification.
func (d *Dispatcher) HandleChannelPost(ctx context.Context, post *botapi.Message) error {
	msg, err := tessen.Normalize(&botapi.Update{ChannelPost: post})
	if err != nil {
		return tessen.WithStatus(http.StatusBadRequest, err)
	}

	d.invoke(ctx, d.public, tessen.ScopePublic, tessen.EventChannelPost, msg)

	return nil
}

// HandleCallbackQuery routes a callback by its data payload. Both registries
// are consulted independently: a callback datum registered in both scopes
// invokes both handlers.
func (d *Dispatcher) HandleCallbackQuery(ctx context.Context, query *botapi.CallbackQuery) error {
	if query == nil {
		return tessen.WithStatus(http.StatusBadRequest, tessen.ErrUnrecognizedUpdate)
	}
	msg, err := tessen.Normalize(&botapi.Update{CallbackQuery: query})
	if err != nil {
		return tessen.WithStatus(http.StatusBadRequest, err)
	}

	invoked := false
	if _, found := d.private.Handler(query.Data); found {
		d.invoke(ctx, d.private, tessen.ScopePrivate, query.Data, msg)
		invoked = true
	}
	if _, found := d.public.Handler(query.Data); found {
		d.invoke(ctx, d.public, tessen.ScopePublic, query.Data, msg)
		invoked = true
	}
	if !invoked {
		d.cfg.logger.DebugContext(ctx, "unknown callback data", "data", query.Data)
	}

	return nil
}

// HandleInlineQuery routes an inline query by its chat-type field: private
// and sender contexts route private, everything else routes public.
func (d *Dispatcher) HandleInlineQuery(ctx context.Context, query *botapi.InlineQuery) error {
	if query == nil {
		return tessen.WithStatus(http.StatusBadRequest, tessen.ErrUnrecognizedUpdate)
	}
	msg, err := tessen.Normalize(&botapi.Update{InlineQuery: query})
	if err != nil {
		return tessen.WithStatus(http.StatusBadRequest, err)
	}

	scope := tessen.ScopePublic
	if query.ChatType == botapi.ChatTypePrivate || query.ChatType == botapi.ChatTypeSender {
		scope = tessen.ScopePrivate
	}
	d.invoke(ctx, d.registryFor(scope), scope, tessen.EventInlineQuery, msg)

	return nil
}

// registryFor selects the handler registry for one scope.
func (d *Dispatcher) registryFor(scope tessen.Scope) *tessen.Registry {
	if scope == tessen.ScopePrivate {
		return d.private
	}

	return d.public
}

// invoke looks up and runs one handler inside the isolation boundary.
// A missing handler is a deliberate no-op, not an error.
func (d *Dispatcher) invoke(
	ctx context.Context,
	registry *tessen.Registry,
	scope tessen.Scope,
	event string,
	msg *tessen.Message,
) {
	handler, found := registry.Handler(event)
	if !found {
		d.cfg.logger.DebugContext(ctx, "unknown event", "scope", scope, "event", event)
		return
	}

	correlationID := uuid.NewString()
	scopeName := fmt.Sprintf("%s handler %s", scope, event)
	if err := runSafely(scopeName, func() error {
		return handler(ctx, d.bot, msg)
	}); err != nil {
		d.cfg.onFailure(ctx, tessen.Failure{
			Kind:          tessen.FailureHandler,
			Scope:         scopeName,
			CorrelationID: correlationID,
			Err:           err,
		})
	}
}

// flushForwards is the timer-driven flush path: resolve every batched
// message concurrently, then invoke the private forwards handler with the
// batch in arrival order. No caller waits on a flush, so every failure is
// caught here and routed to the failure sink.
func (d *Dispatcher) flushForwards(chatID string, batch []*tessen.Message) {
	ctx := context.Background()
	correlationID := uuid.NewString()

	handler, found := d.private.Forwards()
	if !found {
		// Nothing will consume the batch; skip resolution instead of
		// resolving into the void.
		d.cfg.logger.Debug("unknown event",
			"scope", tessen.ScopePrivate,
			"event", tessen.EventMessageForwards,
			"chat_id", chatID,
			"discarded", len(batch),
		)
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, msg := range batch {
		group.Go(func() error {
			return d.resolver.Enrich(groupCtx, msg)
		})
	}
	if err := group.Wait(); err != nil {
		d.cfg.onFailure(ctx, tessen.Failure{
			Kind:          tessen.FailureEnrichment,
			Scope:         fmt.Sprintf("forward flush chat %s", chatID),
			CorrelationID: correlationID,
			Err:           err,
		})
		return
	}

	scopeName := fmt.Sprintf("%s handler %s", tessen.ScopePrivate, tessen.EventMessageForwards)
	if err := runSafely(scopeName, func() error {
		return handler(ctx, d.bot, batch)
	}); err != nil {
		d.cfg.onFailure(ctx, tessen.Failure{
			Kind:          tessen.FailureHandler,
			Scope:         scopeName,
			CorrelationID: correlationID,
			Err:           err,
		})
	}
}

// statusForEnrichment maps an enrichment failure to the boundary contract:
// the status carried on the error when present, else a generic client error.
func statusForEnrichment(err error) error {
	return tessen.WithStatus(tessen.HTTPStatus(err), err)
}
