// Package ielove scrapes the ielove listing pages. The site serves plain
// HTML, so this scraper fetches and parses with goquery instead of driving
// a browser. ielove exposes no change-marker fields, which means the
// conservative reconciliation mode: every listed property is re-extracted
// unless its id is already in the processed set.
package ielove

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sawadeeeen/mark-one/history"
	"github.com/sawadeeeen/mark-one/models"
	"github.com/sawadeeeen/mark-one/reconcile"
	"github.com/sawadeeeen/mark-one/scraper"
	"github.com/sawadeeeen/mark-one/storage"
	"github.com/sawadeeeen/mark-one/utils"
)

// SourceName is the registry key and data subdirectory for this partner.
const SourceName = "ielove"

const (
	baseURL   = "https://www.ielove.co.jp/buy_mansion/tokyo/"
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPages  = 50
)

var idFromHref = regexp.MustCompile(`/(\d+)/?$`)

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
			client: &http.Client{Timeout: 30 * time.Second},
		}, nil
	})
}

// Scraper drives one ielove pass.
type Scraper struct {
	deps   scraper.Deps
	logger *utils.Logger
	store  *history.Store
	raw    *storage.RawStore
	client *http.Client
}

func (s *Scraper) Name() string { return SourceName }

// Scrape walks the listing pages until one comes back empty, reconciling
// every property it sees. Failures come back as an error-status result.
func (s *Scraper) Scrape(ctx context.Context) (result models.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pass panicked: %v", r)
			result = models.ErrorResult(fmt.Sprintf("panic: %v", r))
		}
	}()

	// No durable change markers on this source, so no short-circuit on
	// marker equality — only already-processed ids are skipped.
	engine, err := reconcile.New(s.store, s.logger, reconcile.Options{TrackMarkers: false})
	if err != nil {
		s.logger.Error("load history: %v", err)
		return models.ErrorResult(err.Error())
	}

	total := 0
	for page := 1; page <= maxPages; page++ {
		records, err := s.fetchPage(ctx, page)
		if err != nil {
			// Best-effort, single-pass: a failed page ends the walk but
			// what was already processed stays persisted.
			s.logger.Error("page %d: %v", page, err)
			break
		}
		if len(records) == 0 {
			s.logger.Info("page %d is empty, stopping", page)
			break
		}

		for _, record := range records {
			if err := s.process(engine, record); err != nil {
				s.logger.Error("aborting pass: %v", err)
				return models.ErrorResult(err.Error())
			}
		}
		total += len(records)
		s.logger.Info("page %d done (%d properties so far)", page, total)
	}

	outcome, err := engine.Finish()
	if err != nil {
		s.logger.Error("deletion sweep: %v", err)
		return models.ErrorResult(err.Error())
	}

	result = models.ScrapeResult{Status: models.StatusSuccess, Message: "物件情報を取得し、保存しました"}
	outcome.Counts(&result)
	s.logger.Info("pass done: %d new, %d updated, %d unchanged, %d deleted",
		result.New, result.Updated, result.Unchanged, result.Deleted)
	return result
}

func (s *Scraper) fetchPage(ctx context.Context, page int) ([]models.PropertyRecord, error) {
	url := baseURL
	if page > 1 {
		url = fmt.Sprintf("%s?pg=%d", baseURL, page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, err
	}

	var records []models.PropertyRecord
	doc.Find(".bukken-card").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Find("a.bukken-card__link").Attr("href")
		m := idFromHref.FindStringSubmatch(strings.TrimSpace(href))
		if m == nil {
			return
		}

		field := func(q string) string {
			return strings.TrimSpace(sel.Find(q).Text())
		}
		records = append(records, models.PropertyRecord{
			"property_id": m[1],
			"物件名":         field(".bukken-card__name"),
			"価格":          field(".bukken-card__price"),
			"所在地":         field(".bukken-card__address"),
			"間取り":         field(".bukken-card__madori"),
			"専有面積":        field(".bukken-card__menseki"),
			"交通":          field(".bukken-card__access"),
			"URL":         href,
		})
	})
	return records, nil
}

// process reconciles one record; unchanged ids cost nothing further, the
// rest are written out and logged for the partner-delta exporters.
func (s *Scraper) process(engine *reconcile.Engine, record models.PropertyRecord) error {
	id := record.ID()
	if id == "" {
		s.logger.Warn("record without id, skipping")
		return nil
	}

	class, err := engine.Observe(id, models.ChangeMarkers{})
	if err != nil {
		return err
	}
	if class == reconcile.ClassUnchanged {
		s.logger.Debug("property %s already processed, skipping", id)
		return nil
	}

	path, err := s.raw.Write(id, record)
	if err != nil {
		return err
	}
	if err := s.deps.Tracker.Record(path); err != nil {
		return err
	}
	s.logger.Info("property %s saved (%s)", id, class)
	return nil
}
