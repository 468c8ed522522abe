// Package fake provides scripted, in-memory collaborator implementations
// used only by internal/scraper and internal/worker tests — never imported
// by production code paths, the same boundary the teacher's
// internal/inference/engine/mock package keeps.
package fake

import (
	"context"
	"fmt"
	"time"

	"github.com/scrapefleet/coordinator/internal/collab"
)

// Page is a scripted collab.Page: Content always returns the same HTML.
type Page struct {
	HTML      string
	GotoErr   error
	closed    bool
	CloseHook func()
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return p.GotoErr
}

func (p *Page) Content(ctx context.Context) (string, error) { return p.HTML, nil }

func (p *Page) Close() {
	p.closed = true
	if p.CloseHook != nil {
		p.CloseHook()
	}
}

// Driver hands back a single scripted Page (or PageErr) for every NewPage
// call, recording the proxies it was bound to.
type Driver struct {
	Page        *Page
	PageErr     error
	BoundProxy  []collab.ProxyTriple
	BoundDisplay []int
}

func (d *Driver) NewPage(ctx context.Context, proxy collab.ProxyTriple, displayID int) (collab.Page, error) {
	d.BoundProxy = append(d.BoundProxy, proxy)
	d.BoundDisplay = append(d.BoundDisplay, displayID)
	if d.PageErr != nil {
		return nil, d.PageErr
	}
	return d.Page, nil
}

// Detector returns a scripted sequence of labels, one per call, repeating
// the last entry once the sequence is exhausted. A non-nil Err makes every
// call fail instead (simulating "detector itself fails").
type Detector struct {
	Labels []collab.Label
	Err    error
	calls  int
}

func (d *Detector) Detect(ctx context.Context, page collab.Page, priorityOrder []collab.Label) (collab.Label, error) {
	if d.Err != nil {
		return "", d.Err
	}
	if len(d.Labels) == 0 {
		return "", fmt.Errorf("fake detector: no labels scripted")
	}
	idx := d.calls
	if idx >= len(d.Labels) {
		idx = len(d.Labels) - 1
	}
	d.calls++
	return d.Labels[idx], nil
}

// Calls reports how many times Detect has been invoked.
func (d *Detector) Calls() int { return d.calls }

// CardParser returns a scripted CardData or Err.
type CardParser struct {
	Data CardDataFunc
	Err  error
}

// CardDataFunc lets a test vary the returned CardData per call (e.g. keyed
// by item_id embedded in the HTML), defaulting to a fixed value when nil.
type CardDataFunc func(html string) collab.CardData

func (p *CardParser) Parse(ctx context.Context, html string, fields collab.RequestedFields) (collab.CardData, error) {
	if p.Err != nil {
		return collab.CardData{}, p.Err
	}
	if p.Data != nil {
		return p.Data(html), nil
	}
	return collab.CardData{}, nil
}

// CaptchaResolver returns a scripted final state and solved flag.
type CaptchaResolver struct {
	FinalState collab.Label
	Solved     bool
	Err        error
}

func (r *CaptchaResolver) Resolve(ctx context.Context, page collab.Page, maxAttempts int) (collab.Label, bool, error) {
	if r.Err != nil {
		return "", false, r.Err
	}
	return r.FinalState, r.Solved, nil
}
