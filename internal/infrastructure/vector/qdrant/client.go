// Package qdrant implements the establishment vector index over the Qdrant
// HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

var _ ports.EstablishmentIndex = (*Client)(nil)

// pointID derives a stable Qdrant point id from the establishment id, so
// re-indexing overwrites instead of duplicating.
func pointID(establishmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(establishmentID)).String()
}

func (c *Client) Upsert(ctx context.Context, doc domain.IndexDocument, vector []float32) error {
	if doc.EstablishmentID == "" {
		return fmt.Errorf("upsert: empty establishment id")
	}
	if len(vector) == 0 {
		return fmt.Errorf("upsert: empty vector")
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	payload := map[string]any{
		"establishment_id": doc.EstablishmentID,
		"content":          doc.Content,
	}
	for k, v := range doc.Metadata {
		payload[k] = v
	}

	reqBody := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(doc.EstablishmentID),
			"vector":  vector,
			"payload": payload,
		}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "upsert")
}

func (c *Client) Delete(ctx context.Context, establishmentID string) error {
	reqBody := map[string]any{
		"points": []string{pointID(establishmentID)},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPost, path, reqBody, nil, "delete")
}

func (c *Client) Search(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredPoint, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if clauses := buildFilterClauses(filter); len(clauses) > 0 {
		reqBody["filter"] = clauses
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredPoint, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredPoint{
			EstablishmentID: getStringPayload(r.Payload, "establishment_id"),
			Score:           r.Score,
			Metadata:        r.Payload,
		})
	}
	return out, nil
}

func (c *Client) Fetch(ctx context.Context, establishmentID string) (*domain.ScoredPoint, error) {
	var fetchResp struct {
		Result struct {
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/%s", c.collection, pointID(establishmentID))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &fetchResp, "fetch")
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEstablishmentNotFound, establishmentID)
		}
		return nil, err
	}
	if fetchResp.Result.Payload == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEstablishmentNotFound, establishmentID)
	}
	return &domain.ScoredPoint{
		EstablishmentID: establishmentID,
		Score:           1,
		Metadata:        fetchResp.Result.Payload,
	}, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &countResp, "count"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

// buildFilterClauses translates a search filter into the Qdrant filter DSL.
// Every field is a hard constraint: scalar fields match under must, the
// amenity list becomes a should group nested inside must, so at least one
// listed amenity is required rather than merely preferred.
func buildFilterClauses(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	var mustNot []map[string]any

	if filter.City != "" {
		must = append(must, map[string]any{
			"key":   "city",
			"match": map[string]any{"value": filter.City},
		})
	}
	if filter.EstablishmentType != "" && filter.EstablishmentType != string(domain.CategoryAll) {
		must = append(must, map[string]any{
			"key":   "type",
			"match": map[string]any{"value": filter.EstablishmentType},
		})
	}
	if filter.MaxPrice > 0 {
		must = append(must, map[string]any{
			"key":   "price_range",
			"range": map[string]any{"lte": filter.MaxPrice},
		})
	}
	if len(filter.Amenities) > 0 {
		anyAmenity := make([]map[string]any, 0, len(filter.Amenities))
		for _, amenity := range filter.Amenities {
			anyAmenity = append(anyAmenity, map[string]any{
				"key":   "amenities",
				"match": map[string]any{"value": amenity},
			})
		}
		must = append(must, map[string]any{"should": anyAmenity})
	}
	if len(filter.ExcludeIDs) > 0 {
		mustNot = append(mustNot, map[string]any{
			"key":   "establishment_id",
			"match": map[string]any{"any": filter.ExcludeIDs},
		})
	}

	clauses := map[string]any{}
	if len(must) > 0 {
		clauses["must"] = must
	}
	if len(mustNot) > 0 {
		clauses["must_not"] = mustNot
	}
	if len(clauses) == 0 {
		return nil
	}
	return clauses
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	// 409 means the collection already exists.
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

type statusError struct {
	operation  string
	statusCode int
	status     string
	body       string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func hasStatus(err error, statusCode int) bool {
	se, ok := err.(*statusError)
	return ok && se.statusCode == statusCode
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation:  operation,
			statusCode: resp.StatusCode,
			status:     resp.Status,
			body:       strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
