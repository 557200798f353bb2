package backend

import "context"

// AnalysisClient wraps the analysis back-end's camera-source management
// surface (spec.md §6 "Analysis" egress list): create, update, delete and
// list sources, and fetch one source's info. The coalescer's camera
// lookups do not go through this client; they read the cameras table via
// dao.LibraryDAO.GetCamera.
type AnalysisClient struct {
	*Client
}

func NewAnalysisClient(c *Client) *AnalysisClient {
	return &AnalysisClient{Client: c}
}

type CreateSourceRequest struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

func (a *AnalysisClient) CreateSource(ctx context.Context, req CreateSourceRequest) error {
	return a.call(ctx, "/create_source", req, nil)
}

type UpdateSourceRequest struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

func (a *AnalysisClient) UpdateSource(ctx context.Context, req UpdateSourceRequest) error {
	return a.call(ctx, "/update_source", req, nil)
}

type DeleteSourceRequest struct {
	SourceID string `json:"source_id"`
}

func (a *AnalysisClient) DeleteSource(ctx context.Context, req DeleteSourceRequest) error {
	return a.call(ctx, "/delete_source", req, nil)
}

type GetSourcesResponse struct {
	SourceIDs []string `json:"source_ids"`
}

func (a *AnalysisClient) GetSources(ctx context.Context) (*GetSourcesResponse, error) {
	var out GetSourcesResponse
	if err := a.call(ctx, "/get_sources", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type GetSourceInfoRequest struct {
	SourceID string `json:"source_id"`
}

type GetSourceInfoResponse struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	State    string `json:"state"`
}

func (a *AnalysisClient) GetSourceInfo(ctx context.Context, req GetSourceInfoRequest) (*GetSourceInfoResponse, error) {
	var out GetSourceInfoResponse
	if err := a.call(ctx, "/get_source_info", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
