package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gigalert/internal/model"
)

const freelancerBaseURL = "https://www.freelancer.com/api/projects/0.1/projects/active/"

// freelancerResponse is the top-level Freelancer projects API response.
type freelancerResponse struct {
	Result freelancerResult `json:"result"`
}

type freelancerResult struct {
	Projects []freelancerProject `json:"projects"`
}

// freelancerProject represents a single project in the API response.
type freelancerProject struct {
	ID                 int64             `json:"id"`
	Title              string            `json:"title"`
	PreviewDescription string            `json:"preview_description"`
	Description        string            `json:"description"`
	SeoURL             string            `json:"seo_url"`
	TimeSubmitted      int64             `json:"time_submitted"`
	Budget             *freelancerBudget `json:"budget"`
}

type freelancerBudget struct {
	Minimum  *float64            `json:"minimum"`
	Maximum  *float64            `json:"maximum"`
	Currency *freelancerCurrency `json:"currency"`
}

type freelancerCurrency struct {
	Code string `json:"code"`
}

// FreelancerAdapter fetches active projects from the Freelancer.com
// public API. The endpoint works without auth for basic queries.
type FreelancerAdapter struct {
	baseURL string
	client  *http.Client
	limit   int
}

// NewFreelancerAdapter creates an adapter against the public API.
func NewFreelancerAdapter(client *http.Client) *FreelancerAdapter {
	return &FreelancerAdapter{
		baseURL: freelancerBaseURL,
		client:  client,
		limit:   50,
	}
}

func (a *FreelancerAdapter) Name() string { return "freelancer" }

// Fetch retrieves active projects, narrowed by a comma-joined keyword
// query when keywords are given, and normalizes them into Jobs.
func (a *FreelancerAdapter) Fetch(ctx context.Context, keywords []string) ([]model.Job, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", a.limit))
	params.Set("compact", "true")
	params.Set("job_details", "true")
	params.Set("full_description", "true")
	if len(keywords) > 0 {
		params.Set("query", strings.Join(keywords, ","))
	}

	body, err := get(ctx, a.client, a.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("freelancer fetch: %w", err)
	}

	var resp freelancerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("freelancer fetch: decoding response: %w", err)
	}

	jobs := make([]model.Job, 0, len(resp.Result.Projects))
	for _, p := range resp.Result.Projects {
		desc := p.PreviewDescription
		if desc == "" {
			desc = p.Description
		}

		jobURL := "https://www.freelancer.com"
		if seo := strings.TrimPrefix(p.SeoURL, "/"); seo != "" {
			jobURL = "https://www.freelancer.com/projects/" + seo
		}

		job := model.Job{
			Source:      "freelancer",
			ExternalID:  fmt.Sprintf("%d", p.ID),
			Title:       p.Title,
			Description: extractText(desc),
			URL:         jobURL,
			Currency:    "USD",
			Affiliate:   true,
		}

		if p.Budget != nil {
			job.BudgetMin = p.Budget.Minimum
			job.BudgetMax = p.Budget.Maximum
			if p.Budget.Currency != nil && p.Budget.Currency.Code != "" {
				job.Currency = p.Budget.Currency.Code
			}
		}

		if p.TimeSubmitted > 0 {
			t := time.Unix(p.TimeSubmitted, 0).UTC()
			job.PostedAt = &t
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}
