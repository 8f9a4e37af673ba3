// Package bukkakuflie scrapes the bukkaku.flie.jp agent portal: login,
// walk every seller's listing pages, and reconcile each property card
// against the source's history so unchanged listings skip the expensive
// detail extraction.
package bukkakuflie

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sawadeeeen/mark-one/history"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/reconcile"
	"github.com/sawadeeeen/mark-one/scraper"
	"github.com/sawadeeeen/mark-one/scraper/browser"
	"github.com/sawadeeeen/mark-one/storage"
	"github.com/sawadeeeen/mark-one/utils"
)

// SourceName is the registry key and data subdirectory for this partner.
const SourceName = "bukkaku_flie"

const (
	signInURL   = "https://bukkaku.flie.jp/agent/sign_in"
	loadTimeout = 30 * time.Second

	// Pagination guards: the next-page button stays rendered (merely
	// disabled) on a seller's last page, so the walk also stops when the
	// page content does not advance, and caps out regardless.
	maxSellerPages    = 100
	pageChangeTimeout = 10 * time.Second
)

// Page selectors. The portal is a MUI app, so the class soup is what it is.
const (
	selEmail      = "#agent_email"
	selPassword   = "#agent_password"
	selCommit     = "input[name='commit']"
	selSellerItem = "div.MuiListItemButton-root"
	selCard       = "div.MuiGrid-container"
)

func init() {
	scraper.Register(SourceName, func(deps scraper.Deps) (scraper.Scraper, error) {
		dataDir := filepath.Join(deps.Config.DataDir, SourceName)
		logger := deps.Logger.WithTag(SourceName)

		store, err := history.NewStore(dataDir, logger)
		if err != nil {
			return nil, err
		}
		raw, err := storage.NewRawStore(dataDir)
		if err != nil {
			return nil, err
		}
		return &Scraper{
			deps:   deps,
			logger: logger,
			store:  store,
			raw:    raw,
		}, nil
	})
}

// Scraper drives one bukkaku_flie pass.
type Scraper struct {
	deps   scraper.Deps
	logger *utils.Logger
	store  *history.Store
	raw    *storage.RawStore
}

func (s *Scraper) Name() string { return SourceName }

// card mirrors one property card on a seller's listing page.
type card struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Address string `json:"address"`
	Company string `json:"company"`
	Changed string `json:"changed"`
	Updated string `json:"updated"`
}

// cardsJS pulls every card on the current page in one evaluation instead
// of a round trip per field.
const cardsJS = `
(function() {
	var out = [];
	var cards = document.querySelectorAll("div.MuiGrid-container");
	for (var i = 0; i < cards.length; i++) {
		var c = cards[i];
		var pick = function(sel) {
			var n = c.querySelector(sel);
			return n ? n.textContent.trim() : "";
		};
		out.push({
			id: c.getAttribute("data-property-id") || "",
			name: pick("div.MuiTypography-h5"),
			price: pick("h6.MuiTypography-h6"),
			address: pick("div.css-5zhqi1"),
			company: pick("div.css-1uk1gs8 span"),
			changed: pick("div.css-5zhqi1"),
			updated: pick("div.css-1uk1gs8 span")
		});
	}
	return out;
})()
`

// nextPageJS clicks the next-page button only when it is actually
// enabled. A disabled button means the last page, not an error.
const nextPageJS = `
(function() {
	var btn = document.querySelector("button[aria-label='Go to next page']");
	if (!btn || btn.disabled || btn.getAttribute("aria-disabled") === "true") {
		return false;
	}
	btn.click();
	return true;
})()
`

// Scrape runs the full pass. All failures come back as an error-status
// result; nothing propagates past this boundary.
func (s *Scraper) Scrape(ctx context.Context) (result models.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pass panicked: %v", r)
			result = models.ErrorResult(fmt.Sprintf("panic: %v", r))
		}
	}()

	creds := s.deps.Config.SourceCredentials(SourceName)
	if creds.UserID == "" || creds.Password == "" {
		return models.ErrorResult("missing credentials (set BUKKAKU_FLIE_USER_ID / BUKKAKU_FLIE_PASSWORD)")
	}

	engine, err := reconcile.New(s.store, s.logger, reconcile.Options{TrackMarkers: true})
	if err != nil {
		s.logger.Error("load history: %v", err)
		return models.ErrorResult(err.Error())
	}

	session, err := browser.NewSession(ctx, browser.Options{
		Headless:      s.deps.Config.Headless,
		ChromeBin:     s.deps.Config.ChromeBin,
		RatePerSecond: s.deps.Config.RatePerSecond,
		Logger:        s.logger,
	})
	if err != nil {
		s.logger.Error("start browser: %v", err)
		return models.ErrorResult(err.Error())
	}
	defer session.Close()

	if err := s.login(session, creds.UserID, creds.Password); err != nil {
		s.logger.Error("login: %v", err)
		return models.ErrorResult(err.Error())
	}
	s.logger.Info("logged in")

	sellers := session.Texts(selSellerItem)
	s.logger.Info("found %d sellers", len(sellers))

	var sellerListURL string
	if err := session.Evaluate("window.location.href", &sellerListURL); err != nil {
		return models.ErrorResult(fmt.Sprintf("read seller list url: %v", err))
	}

	for _, seller := range sellers {
		if err := s.scrapeSeller(session, engine, sellerListURL, seller); err != nil {
			// I/O errors against the history file are fatal for the pass;
			// everything else moves on to the next seller.
			if reconcileErr, ok := err.(*passAbort); ok {
				s.logger.Error("aborting pass: %v", reconcileErr.err)
				return models.ErrorResult(reconcileErr.err.Error())
			}
			s.logger.Error("seller %q failed: %v", seller, err)
		}
	}

	outcome, err := engine.Finish()
	if err != nil {
		s.logger.Error("deletion sweep: %v", err)
		return models.ErrorResult(err.Error())
	}

	result = models.ScrapeResult{Status: models.StatusSuccess, Message: "すべての売主の物件情報を取得し、保存しました"}
	outcome.Counts(&result)
	s.logger.Info("pass done: %d new, %d updated, %d unchanged, %d deleted",
		result.New, result.Updated, result.Unchanged, result.Deleted)
	return result
}

// passAbort wraps errors that must stop the whole pass (history or log
// writes failing) as opposed to one seller's page misbehaving.
type passAbort struct{ err error }

func (e *passAbort) Error() string { return e.err.Error() }

func (s *Scraper) login(session *browser.Session, email, password string) error {
	if err := session.Navigate(signInURL, selEmail, loadTimeout); err != nil {
		return err
	}
	if err := session.Fill(selEmail, email, loadTimeout); err != nil {
		return err
	}
	if err := session.Fill(selPassword, password, loadTimeout); err != nil {
		return err
	}
	if err := session.Click(selCommit, loadTimeout); err != nil {
		return err
	}
	return session.WaitVisible(selSellerItem, loadTimeout)
}

func (s *Scraper) scrapeSeller(session *browser.Session, engine *reconcile.Engine, listURL, seller string) error {
	if err := session.Navigate(listURL, selSellerItem, loadTimeout); err != nil {
		return err
	}
	s.logger.Info("processing seller %s", seller)

	if err := clickSellerByText(session, seller); err != nil {
		return err
	}

	prevFirstID := ""
	for page := 1; page <= maxSellerPages; page++ {
		var cards []card
		if err := session.Evaluate(cardsJS, &cards); err != nil {
			return fmt.Errorf("extract cards on page %d: %w", page, err)
		}
		if !pageAdvanced(prevFirstID, cards) {
			s.logger.Warn("page %d for %s shows no new cards, stopping", page, seller)
			break
		}
		prevFirstID = firstCardID(cards)

		for _, c := range cards {
			if c.ID == "" {
				continue
			}
			if err := s.processCard(engine, c); err != nil {
				return &passAbort{err: err}
			}
		}

		var clicked bool
		if err := session.Evaluate(nextPageJS, &clicked); err != nil {
			return fmt.Errorf("advance past page %d: %w", page, err)
		}
		if !clicked {
			s.logger.Info("no further pages for %s", seller)
			break
		}
		if !s.waitPageChange(session, prevFirstID) {
			s.logger.Warn("next page for %s did not load, stopping", seller)
			break
		}
	}
	return nil
}

// firstCardID returns the first identified card's id, or "".
func firstCardID(cards []card) string {
	for _, c := range cards {
		if c.ID != "" {
			return c.ID
		}
	}
	return ""
}

// pageAdvanced reports whether the current cards belong to a page not yet
// processed. Re-reading the same page (the click landed on a disabled
// button, or the site looped back) must end the walk, not restart it.
func pageAdvanced(prevFirstID string, cards []card) bool {
	id := firstCardID(cards)
	return id != "" && id != prevFirstID
}

// waitPageChange polls until the listing's first card id differs from the
// one just processed, so cardsJS never re-reads the old page right after a
// click.
func (s *Scraper) waitPageChange(session *browser.Session, prevFirstID string) bool {
	deadline := time.Now().Add(pageChangeTimeout)
	for time.Now().Before(deadline) {
		ids := session.Attrs(selCard, "data-property-id")
		if id := firstNonEmpty(ids); id != "" && id != prevFirstID {
			return true
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

func firstNonEmpty(ids []string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func clickSellerByText(session *browser.Session, seller string) error {
	var clicked bool
	js := fmt.Sprintf(`
(function() {
	var items = document.querySelectorAll("div.MuiListItemButton-root");
	for (var i = 0; i < items.length; i++) {
		if (items[i].textContent.trim() === %q) {
			items[i].scrollIntoView();
			items[i].click();
			return true;
		}
	}
	return false;
})()`, seller)
	if err := session.Evaluate(js, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("seller %q not found on list page", seller)
	}
	return nil
}

// processCard classifies one card and, unless it is unchanged, persists
// its record and logs the file as updated.
func (s *Scraper) processCard(engine *reconcile.Engine, c card) error {
	markers := models.ChangeMarkers{Changed: c.Changed, Updated: c.Updated}

	class, err := engine.Observe(c.ID, markers)
	if err != nil {
		return err
	}
	if class == reconcile.ClassUnchanged {
		s.logger.Debug("property %s unchanged, skipping extraction", c.ID)
		return nil
	}

	record := models.PropertyRecord{
		"property_id": c.ID,
		"物件名・部屋番号":    c.Name,
		"金額":          c.Price,
		"住所":          c.Address,
		"販売会社":        c.Company,
	}

	path, err := s.raw.Write(c.ID, record)
	if err != nil {
		return err
	}
	if err := s.deps.Tracker.Record(path); err != nil {
		return err
	}
	s.logger.Info("property %s saved (%s)", c.ID, class)
	return nil
}
