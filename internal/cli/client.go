package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// DefinitionResponse — определение workflow из API.
type DefinitionResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedBy string        `json:"created_by,omitempty"`
	Steps     []StepDefJSON `json:"steps"`
	CreatedAt string        `json:"created_at"`
}

// StepDefJSON — шаг определения.
type StepDefJSON struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	DelayDays int    `json:"delay_days"`
}

// ContainerResponse — контейнер из API.
type ContainerResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	UserEmail      string   `json:"user_email"`
	EscaladeEmail  string   `json:"escalade_email,omitempty"`
	CCEmails       []string `json:"cc_emails,omitempty"`
	AccessToken    string   `json:"access_token"`
	MailSender     string   `json:"mail_sender"`
	Escalate       bool     `json:"escalate"`
	UseWorkingDays bool     `json:"use_working_days"`
	Country        string   `json:"country,omitempty"`
	Validated      bool     `json:"validated"`
	ArchivedAt     string   `json:"archived_at,omitempty"`
	DefinitionID   string   `json:"definition_id,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// FormResponse — форма из API.
type FormResponse struct {
	ID            string `json:"id"`
	ContainerID   string `json:"container_id"`
	Status        string `json:"status"`
	WorkflowStep  string `json:"workflow_step,omitempty"`
	CancelComment string `json:"cancel_comment,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ContainerDetailResponse — контейнер вместе с формами.
type ContainerDetailResponse struct {
	ContainerResponse
	Forms []FormResponse `json:"forms"`
}

// StepResponse — запланированный шаг из API.
type StepResponse struct {
	ID          string `json:"id"`
	ContainerID string `json:"container_id"`
	StepID      string `json:"step_id"`
	Kind        string `json:"kind"`
	Seq         int    `json:"seq"`
	ETA         string `json:"eta"`
	Status      string `json:"status"`
	Attempt     int    `json:"attempt"`
	Manual      bool   `json:"manual,omitempty"`
	Error       string `json:"error,omitempty"`
	ExecutedAt  string `json:"executed_at,omitempty"`
}

// TimelineEntryResponse — запись timeline из API.
type TimelineEntryResponse struct {
	ID        int64  `json:"id"`
	FormID    string `json:"form_id"`
	Event     string `json:"event"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

// --- Request types ---

// CreateDefinitionRequest — создание определения.
type CreateDefinitionRequest struct {
	Name      string        `json:"name"`
	CreatedBy string        `json:"created_by,omitempty"`
	Steps     []StepDefJSON `json:"steps"`
}

// CreateContainerRequest — создание контейнера.
type CreateContainerRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	UserEmail      string   `json:"user_email"`
	EscaladeEmail  string   `json:"escalade_email,omitempty"`
	CCEmails       []string `json:"cc_emails,omitempty"`
	MailSender     string   `json:"mail_sender"`
	Escalate       bool     `json:"escalate"`
	UseWorkingDays bool     `json:"use_working_days"`
	Country        string   `json:"country,omitempty"`
	DefinitionID   string   `json:"definition_id,omitempty"`
}

// ListContainersOpts — параметры постраничного списка контейнеров.
type ListContainersOpts struct {
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relance API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Definitions ---

// ListDefinitions возвращает все определения workflow.
func (c *Client) ListDefinitions() ([]DefinitionResponse, error) {
	var definitions []DefinitionResponse
	err := c.list("/api/v1/definitions", nil, &definitions)
	return definitions, err
}

// CreateDefinition создаёт определение workflow.
func (c *Client) CreateDefinition(req CreateDefinitionRequest) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.post("/api/v1/definitions", req, &def)
	return &def, err
}

// GetDefinition возвращает определение по ID.
func (c *Client) GetDefinition(id string) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.get("/api/v1/definitions/"+id, &def)
	return &def, err
}

// DeleteDefinition удаляет определение.
func (c *Client) DeleteDefinition(id string) error {
	return c.delete("/api/v1/definitions/" + id)
}

// --- Containers ---

// ListContainers возвращает список контейнеров.
func (c *Client) ListContainers(opts ListContainersOpts) ([]ContainerResponse, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}

	var containers []ContainerResponse
	err := c.list("/api/v1/containers", params, &containers)
	return containers, err
}

// CreateContainer создаёт контейнер и запускает workflow.
func (c *Client) CreateContainer(req CreateContainerRequest) (*ContainerDetailResponse, error) {
	var container ContainerDetailResponse
	err := c.post("/api/v1/containers", req, &container)
	return &container, err
}

// GetContainer возвращает контейнер с формами.
func (c *Client) GetContainer(id string) (*ContainerDetailResponse, error) {
	var container ContainerDetailResponse
	err := c.get("/api/v1/containers/"+id, &container)
	return &container, err
}

// GetTimeline возвращает timeline контейнера.
func (c *Client) GetTimeline(id string) ([]TimelineEntryResponse, error) {
	var entries []TimelineEntryResponse
	err := c.list("/api/v1/containers/"+id+"/timeline", nil, &entries)
	return entries, err
}

// ListSteps возвращает запланированные шаги контейнера.
func (c *Client) ListSteps(id string) ([]StepResponse, error) {
	var steps []StepResponse
	err := c.list("/api/v1/containers/"+id+"/steps", nil, &steps)
	return steps, err
}

// ValidateContainer закрывает контейнер как проверенный.
func (c *Client) ValidateContainer(id string) error {
	return c.post("/api/v1/containers/"+id+"/validate", nil, nil)
}

// CancelContainer отменяет контейнер.
func (c *Client) CancelContainer(id, comment string) error {
	var body any
	if comment != "" {
		body = map[string]string{"comment": comment}
	}
	return c.post("/api/v1/containers/"+id+"/cancel", body, nil)
}

// EscalateContainer запускает ручную эскалацию.
func (c *Client) EscalateContainer(id, email string) (*StepResponse, error) {
	var body any
	if email != "" {
		body = map[string]string{"email": email}
	}
	var step StepResponse
	err := c.post("/api/v1/containers/"+id+"/escalate", body, &step)
	return &step, err
}

// CreateFormRevision создаёт новую ревизию формы.
func (c *Client) CreateFormRevision(id string) (*FormResponse, error) {
	var form FormResponse
	err := c.post("/api/v1/containers/"+id+"/forms", nil, &form)
	return &form, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
