package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Nikpro200125/orchestrator/rest/model"
	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

const (
	defaultClientPort int = 8080
	maxClientPort         = 65535
)

// Client provides an interface for interacting with a remote orchestrator
// Service.
type Client struct {
	host   string
	prefix string
	port   int
	client *http.Client
}

// ClientOptions describe where the remote service listens.
type ClientOptions struct {
	Host   string
	Port   int
	Prefix string
}

// NewClient takes host, port, and URI prefix information and
// constructs a new Client.
func NewClient(opts ClientOptions) (*Client, error) {
	c := &Client{client: &http.Client{}}

	return c.initClient(opts)
}

// NewClientFromExisting takes an existing http.Client object and
// produces a new Client object.
func NewClientFromExisting(client *http.Client, opts ClientOptions) (*Client, error) {
	if client == nil {
		return nil, errors.New("must use a non-nil existing client")
	}

	c := &Client{client: client}

	return c.initClient(opts)
}

// Copy takes an existing Client object and returns a new client
// object with the same settings that uses a *new* http.Client.
func (c *Client) Copy() *Client {
	new := &Client{}
	*new = *c
	new.client = &http.Client{}

	return new
}

func (c *Client) initClient(opts ClientOptions) (*Client, error) {
	if err := c.SetHost(opts.Host); err != nil {
		return nil, err
	}

	if err := c.SetPort(opts.Port); err != nil {
		return nil, err
	}

	if err := c.SetPrefix(opts.Prefix); err != nil {
		return nil, err
	}

	return c, nil
}

////////////////////////////////////////////////////////////////////////
//
// Configuration Interface
//
////////////////////////////////////////////////////////////////////////

// Client returns a pointer to embedded http.Client object.
func (c *Client) Client() *http.Client {
	return c.client
}

// SetHost allows callers to change the hostname (including leading
// "http(s)") for the Client. Returns an error if the specified host
// does not start with "http".
func (c *Client) SetHost(h string) error {
	if !strings.HasPrefix(h, "http") {
		return errors.Errorf("host '%s' is malformed. must start with 'http'", h)
	}

	c.host = strings.TrimSuffix(h, "/")

	return nil
}

// Host returns the current host.
func (c *Client) Host() string {
	return c.host
}

// SetPort allows callers to change the port used for the client. If
// the port is invalid, returns an error and sets the port to the
// default value. (8080)
func (c *Client) SetPort(p int) error {
	if p <= 0 || p >= maxClientPort {
		c.port = defaultClientPort
		return errors.Errorf("cannot set the port to %d, using %d instead", p, defaultClientPort)
	}

	c.port = p
	return nil
}

// Port returns the current port value for the Client.
func (c *Client) Port() int {
	return c.port
}

// SetPrefix allows callers to modify the prefix, for this client,
func (c *Client) SetPrefix(p string) error {
	c.prefix = strings.Trim(p, "/")
	return nil
}

// Prefix accesses the prefix for the client, The prefix is the part
// of the URI between the end-point and the hostname, of the API.
func (c *Client) Prefix() string {
	return c.prefix
}

func (c *Client) getURL(endpoint string) string {
	var url []string

	if c.port == 80 || c.port == 0 {
		url = append(url, c.host)
	} else {
		url = append(url, fmt.Sprintf("%s:%d", c.host, c.port))
	}

	if c.prefix != "" {
		url = append(url, c.prefix)
	}

	if endpoint = strings.Trim(endpoint, "/"); endpoint != "" {
		url = append(url, endpoint)
	}

	return strings.Join(url, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	url := c.getURL(endpoint)
	grip.Debugln(method, url)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "problem building request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "problem making %s request to '%s'", method, url)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errResp := gimlet.ErrorResponse{}
		if err = gimlet.GetJSON(resp.Body, &errResp); err != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		errResp.StatusCode = resp.StatusCode
		return nil, errResp
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, method, endpoint string, out interface{}) error {
	resp, err := c.do(ctx, method, endpoint, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return errors.Wrap(gimlet.GetJSON(resp.Body, out), "problem reading response")
}

// GenerateRequest describes a specification to upload to the service.
type GenerateRequest struct {
	Filename string
	Data     []byte
	Name     string
	Seed     int64
}

func (r GenerateRequest) form(async bool) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{}
	if r.Name != "" {
		fields["name"] = r.Name
	}
	if r.Seed != 0 {
		fields["seed"] = strconv.FormatInt(r.Seed, 10)
	}
	if async {
		fields["async"] = "true"
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", errors.Wrapf(err, "problem writing field '%s'", k)
		}
	}

	part, err := w.CreateFormFile("file", r.Filename)
	if err != nil {
		return nil, "", errors.Wrap(err, "problem creating file part")
	}
	if _, err = part.Write(r.Data); err != nil {
		return nil, "", errors.Wrap(err, "problem writing file part")
	}
	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "problem closing multipart form")
	}

	return buf, w.FormDataContentType(), nil
}

////////////////////////////////////////////////////////////////////////
//
// Public Operations that Interact with the Service
//
////////////////////////////////////////////////////////////////////////

// GetStatus returns the status of the remote service.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.getJSON(ctx, http.MethodGet, "/v1/status", out); err != nil {
		return nil, errors.Wrap(err, "problem reading status result")
	}

	return out, nil
}

// GenerateService uploads a specification, waits for the generated service
// to be running and returns its base URL.
func (c *Client) GenerateService(ctx context.Context, req GenerateRequest) (string, error) {
	body, contentType, err := req.form(false)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/api/generate-service", body, contentType)
	if err != nil {
		return "", errors.Wrapf(err, "problem generating service from '%s'", req.Filename)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "problem reading response")
	}

	return strings.TrimSpace(string(out)), nil
}

// GenerateServiceAsync uploads a specification and returns as soon as the
// service is recorded.
func (c *Client) GenerateServiceAsync(ctx context.Context, req GenerateRequest) (*model.APIGenerateResponse, error) {
	body, contentType, err := req.form(true)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/api/generate-service", body, contentType)
	if err != nil {
		return nil, errors.Wrapf(err, "problem generating service from '%s'", req.Filename)
	}
	defer resp.Body.Close()

	out := &model.APIGenerateResponse{}
	if err = gimlet.GetJSON(resp.Body, out); err != nil {
		return nil, errors.Wrap(err, "problem reading response")
	}

	return out, nil
}

// Convert returns the OpenAPI document, as YAML, generated from a LibSL
// specification.
func (c *Client) Convert(ctx context.Context, filename string, data []byte) ([]byte, error) {
	body, contentType, err := GenerateRequest{Filename: filename, Data: data}.form(false)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/api/convert", body, contentType)
	if err != nil {
		return nil, errors.Wrapf(err, "problem converting '%s'", filename)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	return out, errors.Wrap(err, "problem reading response")
}

// ListServices returns every service the remote orchestrator has recorded.
func (c *Client) ListServices(ctx context.Context) ([]model.APIGeneratedService, error) {
	out := []model.APIGeneratedService{}
	if err := c.getJSON(ctx, http.MethodGet, "/v1/api/services", &out); err != nil {
		return nil, errors.Wrap(err, "problem listing services")
	}

	return out, nil
}

func (c *Client) GetService(ctx context.Context, id string) (*model.APIGeneratedService, error) {
	out := &model.APIGeneratedService{}
	if err := c.getJSON(ctx, http.MethodGet, "/v1/api/services/"+id, out); err != nil {
		return nil, errors.Wrapf(err, "problem getting service '%s'", id)
	}

	return out, nil
}

func (c *Client) RemoveService(ctx context.Context, id string) (*model.APIGeneratedService, error) {
	out := &model.APIGeneratedService{}
	if err := c.getJSON(ctx, http.MethodDelete, "/v1/api/services/"+id, out); err != nil {
		return nil, errors.Wrapf(err, "problem removing service '%s'", id)
	}

	return out, nil
}
