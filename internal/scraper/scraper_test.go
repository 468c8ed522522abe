package scraper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapefleet/coordinator/internal/collab"
	"github.com/scrapefleet/coordinator/internal/collab/fake"
	"github.com/scrapefleet/coordinator/internal/scraper"
)

func newLease(itemID int64) scraper.Lease {
	return scraper.Lease{
		ItemID:   itemID,
		Attempts: 1,
		Proxy:    "p1:1000:u:x",
		WorkerID: "w:host:1:0",
		Page:     &fake.Page{HTML: "<html></html>"},
	}
}

func TestDecide_CardFound_Success(t *testing.T) {
	lease := newLease(100)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCardFound}}
	parser := &fake.CardParser{Data: func(string) collab.CardData {
		return collab.CardData{ItemID: 100, Title: "T100", Price: "1999.00", ViewsTotal: "42"}
	}}

	out, err := scraper.Decide(context.Background(), lease, detector, parser, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeSuccess, out.Kind)
	assert.False(t, out.ItemIDMismatch)
	require.NotNil(t, out.Result.Price)
	assert.Equal(t, int64(199900), *out.Result.Price)
	require.NotNil(t, out.Result.ViewsTotal)
	assert.Equal(t, int64(42), *out.Result.ViewsTotal)
}

func TestDecide_CardFound_ItemIDMismatchLogged(t *testing.T) {
	lease := newLease(101)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCardFound}}
	parser := &fake.CardParser{Data: func(string) collab.CardData {
		return collab.CardData{ItemID: 999, Title: "wrong redirect"}
	}}

	out, err := scraper.Decide(context.Background(), lease, detector, parser, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeSuccess, out.Kind)
	assert.True(t, out.ItemIDMismatch)
}

func TestDecide_CardFound_BadPriceIsNullNotError(t *testing.T) {
	lease := newLease(102)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCardFound}}
	parser := &fake.CardParser{Data: func(string) collab.CardData {
		return collab.CardData{ItemID: 102, Price: "not-a-number", ViewsTotal: "also-bad"}
	}}

	out, err := scraper.Decide(context.Background(), lease, detector, parser, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeSuccess, out.Kind)
	assert.Nil(t, out.Result.Price)
	assert.Nil(t, out.Result.ViewsTotal)
}

func TestDecide_Removed_Unavailable(t *testing.T) {
	lease := newLease(200)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelRemoved}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeUnavailable, out.Kind)
	assert.Equal(t, "unavailable", out.Result.Status)
}

func TestDecide_ProxyBlock403_RotatesAndBlocks(t *testing.T) {
	lease := newLease(300)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelProxyBlock403}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.True(t, out.RotateProxy)
	assert.Equal(t, "proxy_blocked_http_403", out.FailureReason)
}

func TestDecide_ProxyAuth407_RotatesAndBlocks(t *testing.T) {
	lease := newLease(301)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelProxyAuth407}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.True(t, out.RotateProxy)
	assert.Equal(t, "proxy_blocked_http_407", out.FailureReason)
}

func TestDecide_Captcha_SolvedThenCardFound(t *testing.T) {
	lease := newLease(400)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCaptcha}}
	parser := &fake.CardParser{Data: func(string) collab.CardData {
		return collab.CardData{ItemID: 400, Title: "T400"}
	}}
	resolver := &fake.CaptchaResolver{FinalState: collab.LabelCardFound, Solved: true}

	out, err := scraper.Decide(context.Background(), lease, detector, parser, resolver)
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeSuccess, out.Kind)
}

func TestDecide_Captcha_SolvedThenRemoved(t *testing.T) {
	lease := newLease(401)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCaptcha}}
	resolver := &fake.CaptchaResolver{FinalState: collab.LabelRemoved, Solved: true}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, resolver)
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeUnavailable, out.Kind)
}

func TestDecide_Captcha_SolvedThenUnexpectedState_NoRotate(t *testing.T) {
	lease := newLease(402)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelContinueButton}}
	resolver := &fake.CaptchaResolver{FinalState: collab.LabelCatalog, Solved: true}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, resolver)
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.False(t, out.RotateProxy)
}

func TestDecide_Captcha_Unsolved_Rotates(t *testing.T) {
	lease := newLease(403)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelProxyBlock429}}
	resolver := &fake.CaptchaResolver{Solved: false}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, resolver)
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.True(t, out.RotateProxy)
	assert.Equal(t, "captcha_unsolved", out.FailureReason)
}

func TestDecide_SellerProfile_NoRotate(t *testing.T) {
	lease := newLease(500)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelSellerProfile}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.False(t, out.RotateProxy)
	assert.Equal(t, "unexpected_state_seller_profile", out.FailureReason)
}

func TestDecide_Catalog_NoRotate(t *testing.T) {
	lease := newLease(501)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCatalog}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.False(t, out.RotateProxy)
}

func TestDecide_DetectionError_Rotates(t *testing.T) {
	lease := newLease(600)
	detector := &fake.Detector{Err: errors.New("boom")}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.True(t, out.RotateProxy)
	assert.Equal(t, "detection_error", out.FailureReason)
}

func TestDecide_ParseError_NoRotate(t *testing.T) {
	lease := newLease(700)
	detector := &fake.Detector{Labels: []collab.Label{collab.LabelCardFound}}
	parser := &fake.CardParser{Err: errors.New("malformed card")}

	out, err := scraper.Decide(context.Background(), lease, detector, parser, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.False(t, out.RotateProxy)
	assert.Equal(t, "parse_card_error", out.FailureReason)
}

func TestDecide_UnknownLabel_Rotates(t *testing.T) {
	lease := newLease(800)
	detector := &fake.Detector{Labels: []collab.Label{collab.Label("something_new")}}

	out, err := scraper.Decide(context.Background(), lease, detector, &fake.CardParser{}, &fake.CaptchaResolver{})
	require.NoError(t, err)
	assert.Equal(t, scraper.OutcomeError, out.Kind)
	assert.True(t, out.RotateProxy)
}

func TestDecide_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lease := newLease(900)
	_, err := scraper.Decide(ctx, lease, &fake.Detector{}, &fake.CardParser{}, &fake.CaptchaResolver{})
	assert.Error(t, err)
}
