package backend

import "context"

// RecognitionClient wraps the recognition back-end's detect/search/person
// management surface (spec.md §6 "Recognition" egress list).
type RecognitionClient struct {
	*Client
}

// NewRecognitionClient binds a RecognitionClient to baseURL.
func NewRecognitionClient(c *Client) *RecognitionClient {
	return &RecognitionClient{Client: c}
}

// DetectRequest carries a base64-encoded image for detection.
type DetectRequest struct {
	Image string `json:"image"`
	Fast  bool   `json:"fast"`
}

// DetectedFace is one face found by Detect.
type DetectedFace struct {
	Quality float64   `json:"quality"`
	Feature []float64 `json:"feature"`
	Aligned string    `json:"aligned"` // base64-encoded aligned crop
}

// DetectResponse is the payload of a detect call.
type DetectResponse struct {
	Faces []DetectedFace `json:"faces"`
}

// Detect runs face detection on a single image, per spec.md §4.J's
// "call recognition detect(fast=true)" (bulk-enrollment detect stage) and
// the face-search workers' feature-presence requirement.
func (r *RecognitionClient) Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error) {
	var out DetectResponse
	if err := r.call(ctx, "/detect", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFeaturesRequest requests stored feature vectors for a person.
type GetFeaturesRequest struct {
	LibraryID string `json:"library_id"`
	PersonID  string `json:"person_id"`
}

// GetFeaturesResponse returns the feature vectors found.
type GetFeaturesResponse struct {
	Features [][]float64 `json:"features"`
}

func (r *RecognitionClient) GetFeatures(ctx context.Context, req GetFeaturesRequest) (*GetFeaturesResponse, error) {
	var out GetFeaturesResponse
	if err := r.call(ctx, "/get_features", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDBRequest provisions a new library-backed feature database.
type CreateDBRequest struct {
	LibraryID string `json:"library_id"`
	Name      string `json:"name"`
}

func (r *RecognitionClient) CreateDB(ctx context.Context, req CreateDBRequest) error {
	return r.call(ctx, "/create_db", req, nil)
}

// DeleteDBRequest removes a feature database.
type DeleteDBRequest struct {
	LibraryID string `json:"library_id"`
}

func (r *RecognitionClient) DeleteDB(ctx context.Context, req DeleteDBRequest) error {
	return r.call(ctx, "/delete_db", req, nil)
}

// FlushDBRequest persists in-memory DB state to durable storage.
type FlushDBRequest struct {
	LibraryID string `json:"library_id"`
}

func (r *RecognitionClient) FlushDB(ctx context.Context, req FlushDBRequest) error {
	return r.call(ctx, "/flush_db", req, nil)
}

// GetDBsResponse lists known library-backed databases.
type GetDBsResponse struct {
	LibraryIDs []string `json:"library_ids"`
}

func (r *RecognitionClient) GetDBs(ctx context.Context) (*GetDBsResponse, error) {
	var out GetDBsResponse
	if err := r.call(ctx, "/get_dbs", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDBInfoRequest asks for a single database's metadata.
type GetDBInfoRequest struct {
	LibraryID string `json:"library_id"`
}

// GetDBInfoResponse carries a database's person/feature counts.
type GetDBInfoResponse struct {
	PersonCount  int `json:"person_count"`
	FeatureCount int `json:"feature_count"`
}

func (r *RecognitionClient) GetDBInfo(ctx context.Context, req GetDBInfoRequest) (*GetDBInfoResponse, error) {
	var out GetDBInfoResponse
	if err := r.call(ctx, "/get_db_info", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDBPersonsRequest lists the person IDs enrolled in a database.
type GetDBPersonsRequest struct {
	LibraryID string `json:"library_id"`
}

type GetDBPersonsResponse struct {
	PersonIDs []string `json:"person_ids"`
}

func (r *RecognitionClient) GetDBPersons(ctx context.Context, req GetDBPersonsRequest) (*GetDBPersonsResponse, error) {
	var out GetDBPersonsResponse
	if err := r.call(ctx, "/get_db_persons", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPersonInfoRequest asks for one enrolled person's detail.
type GetPersonInfoRequest struct {
	LibraryID string `json:"library_id"`
	PersonID  string `json:"person_id"`
}

type GetPersonInfoResponse struct {
	PersonID   string   `json:"person_id"`
	FeatureIDs []string `json:"feature_ids"`
}

func (r *RecognitionClient) GetPersonInfo(ctx context.Context, req GetPersonInfoRequest) (*GetPersonInfoResponse, error) {
	var out GetPersonInfoResponse
	if err := r.call(ctx, "/get_person_info", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePersonsRequest enrolls a batch of provisional persons with their
// detected features, per spec.md §4.J's create-person stage.
type CreatePersonsRequest struct {
	LibraryID string      `json:"library_id"`
	PersonIDs []string    `json:"person_ids"`
	Features  [][]float64 `json:"features"`
}

// CreatedPerson is one enrollment result, carrying the back-end-assigned
// face ID the caller renames the provisional image file to.
type CreatedPerson struct {
	PersonID string `json:"person_id"`
	FaceID   string `json:"face_id"`
	Error    string `json:"error,omitempty"`
}

type CreatePersonsResponse struct {
	Persons []CreatedPerson `json:"persons"`
}

func (r *RecognitionClient) CreatePersons(ctx context.Context, req CreatePersonsRequest) (*CreatePersonsResponse, error) {
	var out CreatePersonsResponse
	if err := r.call(ctx, "/create_persons", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type DeletePersonRequest struct {
	LibraryID string `json:"library_id"`
	PersonID  string `json:"person_id"`
}

func (r *RecognitionClient) DeletePerson(ctx context.Context, req DeletePersonRequest) error {
	return r.call(ctx, "/delete_person", req, nil)
}

type DeletePersonFeatureRequest struct {
	LibraryID string `json:"library_id"`
	PersonID  string `json:"person_id"`
	FaceID    string `json:"face_id"`
}

func (r *RecognitionClient) DeletePersonFeature(ctx context.Context, req DeletePersonFeatureRequest) error {
	return r.call(ctx, "/delete_person_feature", req, nil)
}

type AddFeaturesToPersonRequest struct {
	LibraryID string      `json:"library_id"`
	PersonID  string      `json:"person_id"`
	Features  [][]float64 `json:"features"`
}

func (r *RecognitionClient) AddFeaturesToPerson(ctx context.Context, req AddFeaturesToPersonRequest) error {
	return r.call(ctx, "/add_features_to_person", req, nil)
}

type MovePersonsRequest struct {
	SrcLibraryID string   `json:"src_library_id"`
	DstLibraryID string   `json:"dst_library_id"`
	PersonIDs    []string `json:"person_ids"`
}

func (r *RecognitionClient) MovePersons(ctx context.Context, req MovePersonsRequest) error {
	return r.call(ctx, "/move_persons", req, nil)
}

type CompareRequest struct {
	FeatureA []float64 `json:"feature_a"`
	FeatureB []float64 `json:"feature_b"`
}

type CompareResponse struct {
	Score float64 `json:"score"`
}

func (r *RecognitionClient) Compare(ctx context.Context, req CompareRequest) (*CompareResponse, error) {
	var out CompareResponse
	if err := r.call(ctx, "/compare", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CompareNRequest struct {
	Feature  []float64   `json:"feature"`
	Features [][]float64 `json:"features"`
}

type CompareNResponse struct {
	Scores []float64 `json:"scores"`
}

func (r *RecognitionClient) CompareN(ctx context.Context, req CompareNRequest) (*CompareNResponse, error) {
	var out CompareNResponse
	if err := r.call(ctx, "/compare_n", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchRequest is a single batched 1:N search call, one element of
// Features per snapshot, per spec.md §4.E's "one call per batch" contract.
type SearchRequest struct {
	LibraryIDs []string    `json:"library_ids"`
	Top        []int       `json:"top"`
	Threshold  []float64   `json:"threshold"`
	Features   [][]float64 `json:"features"`
}

// SearchMatch is the top match for one input feature, or the zero value
// when no match cleared the threshold.
type SearchMatch struct {
	PersonID  string  `json:"person_id"`
	LibraryID string  `json:"library_id"`
	Score     float64 `json:"score"`
	Found     bool    `json:"found"`
}

// SearchResponse's Matches index i corresponds to Features index i in the
// request, per spec.md §8's "within a search batch" invariant.
type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
}

func (r *RecognitionClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	if err := r.call(ctx, "/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
