// Package scraper implements the per-lease decision table that turns a
// detected page state into an outcome (SPEC_FULL.md §4.3). It is the one
// component with no database dependency: Decide is a pure function of its
// inputs, which is what makes it exhaustively table-testable.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/scrapefleet/coordinator/internal/collab"
)

// OutcomeKind distinguishes the three terminal shapes a lease can end in.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeUnavailable OutcomeKind = "unavailable"
	OutcomeError       OutcomeKind = "error"
)

// ResultData is the parsed listing content, store-agnostic so this package
// never imports internal/store. The worker runtime translates it into a
// store.Result row.
type ResultData struct {
	ItemID           int64
	Title            string
	Description      string
	Characteristics  map[string]string
	Price            *int64 // fixed-point cents, nil on coercion failure
	PublishedAt      *time.Time
	SellerName       string
	SellerProfileURL string
	LocationAddress  string
	LocationMetro    string
	LocationRegion   string
	ViewsTotal       *int64 // nil on coercion failure
	Status           string // "success" | "unavailable"
}

// Outcome is the tagged result of Decide: exactly one of Result (for
// Success/Unavailable) or FailureReason+RotateProxy (for Error) is
// meaningful, selected by Kind.
type Outcome struct {
	Kind           OutcomeKind
	Result         ResultData
	FailureReason  string
	RotateProxy    bool
	ItemIDMismatch bool // true if the parsed card's item_id differs from the lease's
}

// Lease is the per-task context Decide needs: the page already navigated to
// the listing URL, plus the identifiers the worker runtime is tracking.
type Lease struct {
	ItemID   int64
	Attempts int
	Proxy    string
	WorkerID string
	Page     collab.Page
}

const maxCaptchaAttempts = 3

// Decide runs the decision table in SPEC_FULL.md §4.3 against the page
// already bound to lease. It never returns a non-nil error for any of the
// taxonomy's failure modes — those are all encoded as an Outcome with
// Kind=OutcomeError. A non-nil error is returned only when ctx is already
// canceled on entry; collaborator errors, including ones caused by a later
// cancellation, are mapped to error outcomes.
func Decide(ctx context.Context, lease Lease, detect collab.Detector, parse collab.CardParser, resolveCaptcha collab.CaptchaResolver) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	label, err := detect.Detect(ctx, lease.Page, collab.PriorityOrder)
	if err != nil {
		return errorOutcome("detection_error", true), nil
	}
	return decideLabel(ctx, lease, label, parse, resolveCaptcha)
}

func decideLabel(ctx context.Context, lease Lease, label collab.Label, parse collab.CardParser, resolveCaptcha collab.CaptchaResolver) (Outcome, error) {
	switch label {
	case collab.LabelProxyBlock403:
		return errorOutcome("proxy_blocked_http_403", true), nil
	case collab.LabelProxyAuth407:
		return errorOutcome("proxy_blocked_http_407", true), nil

	case collab.LabelProxyBlock429, collab.LabelCaptcha, collab.LabelContinueButton:
		return handleChallenge(ctx, lease, parse, resolveCaptcha)

	case collab.LabelCardFound:
		return handleCardFound(ctx, lease, parse)

	case collab.LabelRemoved:
		return Outcome{
			Kind:   OutcomeUnavailable,
			Result: ResultData{ItemID: lease.ItemID, Status: string(OutcomeUnavailable)},
		}, nil

	case collab.LabelSellerProfile, collab.LabelCatalog:
		return errorOutcome(fmt.Sprintf("unexpected_state_%s", label), false), nil

	default:
		return errorOutcome(fmt.Sprintf("unexpected_state_%s", label), true), nil
	}
}

// handleChallenge covers proxy_block_429, captcha, and continue_button: all
// three are routed through the CAPTCHA resolver and recursed into the table
// exactly once on success (SPEC_FULL.md §4.3).
func handleChallenge(ctx context.Context, lease Lease, parse collab.CardParser, resolveCaptcha collab.CaptchaResolver) (Outcome, error) {
	finalState, solved, err := resolveCaptcha.Resolve(ctx, lease.Page, maxCaptchaAttempts)
	if err != nil || !solved {
		return errorOutcome("captcha_unsolved", true), nil
	}

	switch finalState {
	case collab.LabelCardFound:
		return handleCardFound(ctx, lease, parse)
	case collab.LabelRemoved:
		return Outcome{
			Kind:   OutcomeUnavailable,
			Result: ResultData{ItemID: lease.ItemID, Status: string(OutcomeUnavailable)},
		}, nil
	default:
		return errorOutcome(fmt.Sprintf("unexpected_state_%s", finalState), false), nil
	}
}

func handleCardFound(ctx context.Context, lease Lease, parse collab.CardParser) (Outcome, error) {
	html, err := lease.Page.Content(ctx)
	if err != nil {
		return errorOutcome("parse_card_error", false), nil
	}

	card, err := parse.Parse(ctx, html, allFields())
	if err != nil {
		return errorOutcome("parse_card_error", false), nil
	}

	mismatch := card.ItemID != 0 && card.ItemID != lease.ItemID

	return Outcome{
		Kind:           OutcomeSuccess,
		ItemIDMismatch: mismatch,
		Result: ResultData{
			ItemID:           lease.ItemID,
			Title:            card.Title,
			Description:      card.Description,
			Characteristics:  card.Characteristics,
			Price:            coercePrice(card.Price),
			PublishedAt:      card.PublishedAt,
			SellerName:       card.SellerName,
			SellerProfileURL: card.SellerProfile,
			LocationAddress:  card.LocationAddress,
			LocationMetro:    card.LocationMetro,
			LocationRegion:   card.LocationRegion,
			ViewsTotal:       coerceInt(card.ViewsTotal),
			Status:           string(OutcomeSuccess),
		},
	}, nil
}

func errorOutcome(reason string, rotateProxy bool) Outcome {
	return Outcome{Kind: OutcomeError, FailureReason: reason, RotateProxy: rotateProxy}
}

func allFields() collab.RequestedFields {
	return collab.RequestedFields{
		Title: true, Description: true, Characteristics: true,
		Price: true, Seller: true, Location: true, Views: true,
	}
}
