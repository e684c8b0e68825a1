package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient индексирует подтверждённые бронирования для поиска по участнику
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// Check connection and create index if needed
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		// Another instance may have created it in the meantime.
		if indexAlreadyExists(createRes.StatusCode, body) {
			slog.Info("Elasticsearch index created concurrently", "index", c.config.Index)
			return nil
		}
		return fmt.Errorf("failed to create index: [%d] %s", createRes.StatusCode, body)
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// indexAlreadyExists reports whether a failed create-index response only says the index exists.
func indexAlreadyExists(status int, body []byte) bool {
	if status != 400 {
		return false
	}
	var resp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Error.Type == "resource_already_exists_exception"
}

func indexMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"booking_id":      map[string]interface{}{"type": "long"},
				"event_id":        map[string]interface{}{"type": "long"},
				"requester_id":    map[string]interface{}{"type": "keyword"},
				"booked_at":       map[string]interface{}{"type": "date"},
				"total_seats":     map[string]interface{}{"type": "integer"},
				"seats_remaining": map[string]interface{}{"type": "integer"},
			},
		},
	}
}

// IndexBooking индексирует бронирование. Повторная индексация перезаписывает документ.
func (c *ElasticsearchClient) IndexBooking(ctx context.Context, doc models.BookingDocument) error {
	if doc.BookedAt.IsZero() {
		doc.BookedAt = time.Now()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(doc.BookingID, 10),
		Body:       bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index booking: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteBooking удаляет бронирование из индекса
func (c *ElasticsearchClient) DeleteBooking(ctx context.Context, bookingID int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(bookingID, 10),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// SearchByRequester возвращает бронирования участника, новые первыми
func (c *ElasticsearchClient) SearchByRequester(ctx context.Context, requesterID string, page, pageSize int) (*models.SearchBookingsResponse, error) {
	from := 0
	if page > 0 && pageSize > 0 {
		from = (page - 1) * pageSize
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	searchRequest := map[string]interface{}{
		"query":            buildSearchQuery(requesterID),
		"sort":             buildSortQuery(),
		"from":             from,
		"size":             pageSize,
		"track_total_hits": true,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.BookingDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]models.BookingDocument, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		items[i] = hit.Source
	}

	return &models.SearchBookingsResponse{Total: response.Hits.Total.Value, Items: items}, nil
}

// buildSearchQuery строит поисковый запрос; пустой участник означает все бронирования
func buildSearchQuery(requesterID string) map[string]interface{} {
	if requesterID == "" {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	return map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": []map[string]interface{}{
				{"term": map[string]interface{}{"requester_id": requesterID}},
			},
		},
	}
}

func buildSortQuery() []map[string]interface{} {
	return []map[string]interface{}{
		{"booked_at": map[string]interface{}{"order": "desc"}},
		{"booking_id": map[string]interface{}{"order": "desc"}},
	}
}

// Count возвращает количество бронирований участника
func (c *ElasticsearchClient) Count(ctx context.Context, requesterID string) (int64, error) {
	countJSON, err := json.Marshal(map[string]interface{}{
		"query": buildSearchQuery(requesterID),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal count query: %w", err)
	}

	req := esapi.CountRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(countJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return 0, fmt.Errorf("failed to execute count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count error: %s", res.String())
	}

	var response struct {
		Count int64 `json:"count"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}

	return response.Count, nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
