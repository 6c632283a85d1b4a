package services

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/logger"

	"sportsmeet/internal/models"
	"sportsmeet/internal/store"
)

// NewsPage is one page of announcements.
type NewsPage struct {
	Items      []*models.NewsItem `json:"items"`
	Page       int                `json:"page"`
	PerPage    int                `json:"perPage"`
	TotalItems int                `json:"totalItems"`
	TotalPages int                `json:"totalPages"`
}

type NewsService struct {
	store   store.NewsStore
	perPage int
}

func NewNewsService(st store.NewsStore, perPage int) *NewsService {
	if perPage < 1 {
		perPage = 4
	}
	return &NewsService{store: st, perPage: perPage}
}

// List returns a page of news, newest first, with any markup reduced to text.
func (s *NewsService) List(ctx context.Context, page int) (*NewsPage, error) {
	if page < 1 {
		page = 1
	}
	items, total, err := s.store.ListNews(ctx, page, s.perPage)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Text, item.Links = plainText(item.Text)
	}
	return &NewsPage{
		Items:      items,
		Page:       page,
		PerPage:    s.perPage,
		TotalItems: total,
		TotalPages: (total + s.perPage - 1) / s.perPage,
	}, nil
}

func (s *NewsService) Post(ctx context.Context, text string) (*models.NewsItem, error) {
	return s.store.CreateNews(ctx, strings.TrimSpace(text))
}

// plainText strips HTML from an announcement and collects its link targets.
func plainText(raw string) (string, []string) {
	if !strings.ContainsAny(raw, "<&") {
		return strings.TrimSpace(raw), nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		logger.Warningf("Failed to parse news markup: %v", err)
		return raw, nil
	}

	var links []string
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return strings.Join(strings.Fields(doc.Text()), " "), links
}
