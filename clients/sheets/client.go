// Package sheets reads cell ranges from the Google Sheets v4 values API.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4"

// Config configures the client
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client fetches raw cell values
type Client struct {
	config     Config
	httpClient *http.Client
}

type valueRange struct {
	Range          string          `json:"range"`
	MajorDimension string          `json:"majorDimension"`
	Values         [][]interface{} `json:"values"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Error is a failed values.get call
type Error struct {
	StatusCode int
	Status     string
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sheets: %s: %v", e.Message, e.Cause)
	}
	if e.Status != "" {
		return fmt.Sprintf("sheets: %s (%s)", e.Message, e.Status)
	}
	return "sheets: " + e.Message
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewClient creates a new Sheets client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// ReadRange returns the rows of rangeA1 with unformatted values. Numbers decode as json.Number.
// Trailing empty cells are omitted by the API, so rows may be shorter than the range width.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rangeA1 string) ([][]interface{}, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.PathEscape(spreadsheetID),
		url.PathEscape(rangeA1),
	)

	query := url.Values{}
	query.Set("valueRenderOption", "UNFORMATTED_VALUE")
	query.Set("majorDimension", "ROWS")
	if c.config.APIKey != "" {
		query.Set("key", c.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &Error{Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		sheetErr := &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			sheetErr.Message = apiErr.Error.Message
			sheetErr.Status = apiErr.Error.Status
		}
		return nil, sheetErr
	}

	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()

	var vr valueRange
	if err := decoder.Decode(&vr); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return vr.Values, nil
}

var startRowPattern = regexp.MustCompile(`^[A-Za-z]+(\d+)`)

// StartRow returns the first sheet row number of an A1 range such as "Members!A2:D".
// Ranges without an explicit row start at 1.
func StartRow(rangeA1 string) int {
	ref := rangeA1
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	ref = strings.TrimSpace(strings.SplitN(ref, ":", 2)[0])

	m := startRowPattern.FindStringSubmatch(ref)
	if m == nil {
		return 1
	}
	row, err := strconv.Atoi(m[1])
	if err != nil || row < 1 {
		return 1
	}
	return row
}
