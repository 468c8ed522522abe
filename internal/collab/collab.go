// Package collab defines the external collaborator contracts the scraper
// state machine is built on: the browser driver, the page-state detector,
// the card parser, and the CAPTCHA resolver. No concrete browser or CAPTCHA
// implementation ships in this repo — these four interfaces are the whole
// boundary (SPEC_FULL.md §1, §6).
package collab

import (
	"context"
	"time"
)

// Label is a page-state classification returned by a Detector. The fixed
// priority order a caller supplies to Detect is PriorityOrder, highest
// first.
type Label string

const (
	LabelProxyBlock403   Label = "proxy_block_403"
	LabelProxyAuth407    Label = "proxy_auth_407"
	LabelProxyBlock429   Label = "proxy_block_429"
	LabelCaptcha         Label = "captcha"
	LabelRemoved         Label = "removed"
	LabelSellerProfile   Label = "seller_profile"
	LabelCatalog         Label = "catalog"
	LabelCardFound       Label = "card_found"
	LabelContinueButton  Label = "continue_button"
)

// PriorityOrder is the fixed nine-label detector priority list, highest
// first (SPEC_FULL.md §6).
var PriorityOrder = []Label{
	LabelProxyBlock403,
	LabelProxyAuth407,
	LabelProxyBlock429,
	LabelCaptcha,
	LabelRemoved,
	LabelSellerProfile,
	LabelCatalog,
	LabelCardFound,
	LabelContinueButton,
}

// ProxyTriple is the upstream a Driver binds a page to.
type ProxyTriple struct {
	Server   string
	Username string
	Password string
}

// Page is the handle a Driver hands back after navigation.
type Page interface {
	// Goto navigates the page to url, failing if it doesn't complete within
	// timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	// Content returns the page's current HTML.
	Content(ctx context.Context) (string, error)
	// Close releases the page. Best-effort: implementations should swallow
	// close errors rather than surface them.
	Close()
}

// Driver launches isolated browser instances, one per slot, each bound to a
// proxy triple and a virtual display so concurrent slots don't contend over
// a shared UI (SPEC_FULL.md §6).
type Driver interface {
	// NewPage opens a page bound to proxy and displayID (the slot's isolated
	// display namespace, e.g. DISPLAY=:i).
	NewPage(ctx context.Context, proxy ProxyTriple, displayID int) (Page, error)
}

// Detector classifies a fetched page into exactly one Label chosen from
// priorityOrder.
type Detector interface {
	Detect(ctx context.Context, page Page, priorityOrder []Label) (Label, error)
}

// CardData is the parsed listing content a CardParser extracts.
type CardData struct {
	Title           string
	Description     string
	Characteristics map[string]string
	Price           string // raw numeric string, coerced by the scraper
	SellerName      string
	SellerProfile   string
	ItemID          int64
	PublishedAt     *time.Time
	LocationAddress string
	LocationMetro   string
	LocationRegion  string
	ViewsTotal      string // raw numeric string, coerced by the scraper
}

// RequestedFields names the CardData fields a caller wants populated; a
// CardParser implementation may use this to skip expensive extraction.
type RequestedFields struct {
	Title, Description, Characteristics bool
	Price, Seller, Location, Views      bool
}

// CardParser extracts CardData from a card_found page's HTML.
type CardParser interface {
	Parse(ctx context.Context, html string, fields RequestedFields) (CardData, error)
}

// CaptchaResolver attempts to clear a CAPTCHA/interstitial challenge,
// re-detecting the resulting page state up to maxAttempts times.
type CaptchaResolver interface {
	// Resolve returns the page's state after resolution attempts and whether
	// a challenge was actually solved. finalState is the zero Label when the
	// resolver gives up without a usable re-detection.
	Resolve(ctx context.Context, page Page, maxAttempts int) (finalState Label, solved bool, err error)
}
