package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

type EvolutionClientConfig struct {
	BaseURL    string
	Instance   string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger

	// pacing applied after every successful send
	PacingMin time.Duration
	PacingMax time.Duration

	// delay field forwarded to the gateway, in milliseconds
	SendDelayMS int
}

// EvolutionClient implements Sender against the Evolution API.
type EvolutionClient struct {
	baseURL     string
	instance    string
	token       string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *log.Logger
	pacingMin   time.Duration
	pacingMax   time.Duration
	sendDelayMS int
}

func NewEvolutionClient(config EvolutionClientConfig) (*EvolutionClient, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, errors.New("evolution base URL is required")
	}
	if strings.TrimSpace(config.Instance) == "" {
		return nil, errors.New("evolution instance is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.PacingMin <= 0 {
		config.PacingMin = 300 * time.Millisecond
	}
	if config.PacingMax <= config.PacingMin {
		config.PacingMax = config.PacingMin + 600*time.Millisecond
	}
	if config.SendDelayMS <= 0 {
		config.SendDelayMS = 50
	}

	return &EvolutionClient{
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		instance:    strings.TrimSpace(config.Instance),
		token:       strings.TrimSpace(config.Token),
		timeout:     config.Timeout,
		httpClient:  config.HTTPClient,
		logger:      config.Logger,
		pacingMin:   config.PacingMin,
		pacingMax:   config.PacingMax,
		sendDelayMS: config.SendDelayMS,
	}, nil
}

// FormatNumber strips the separators spreadsheets leave in phone numbers.
func FormatNumber(number string) string {
	replacer := strings.NewReplacer("+", "", "-", "", " ", "")
	return replacer.Replace(strings.TrimSpace(number))
}

func (c *EvolutionClient) Send(ctx context.Context, number, text, label string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.checkSession(timeoutCtx); err != nil {
		return err
	}

	formatted := FormatNumber(number)
	payload := map[string]any{
		"number": formatted,
		"text":   text,
		"delay":  c.sendDelayMS,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	if c.logger != nil {
		c.logger.Printf("sending message number=%s team=%s bytes=%d", formatted, label, len(text))
	}

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/message/sendText/"+c.instance,
		bytes.NewReader(encoded),
	)
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("apikey", c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("call evolution api: %w", err)
	}
	defer response.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(response.Body, 16*1024))
	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return &Error{StatusCode: response.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	var decoded struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Success != nil && !*decoded.Success {
			detail := decoded.Message
			if detail == "" {
				detail = "gateway rejected the message"
			}
			return &Error{StatusCode: response.StatusCode, Detail: detail}
		}
	}

	c.pace(ctx)
	return nil
}

// checkSession fails fast when the WhatsApp session is not connected.
func (c *EvolutionClient) checkSession(ctx context.Context) error {
	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"/instance/connectionState/"+c.instance,
		nil,
	)
	if err != nil {
		return fmt.Errorf("build session request: %w", err)
	}
	request.Header.Set("apikey", c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionNotReady, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: connection state returned status %d", ErrSessionNotReady, response.StatusCode)
	}

	body, _ := io.ReadAll(io.LimitReader(response.Body, 4*1024))
	var decoded struct {
		ConnectionState string `json:"connectionState"`
		Instance        struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("%w: invalid connection state payload", ErrSessionNotReady)
	}

	state := decoded.ConnectionState
	if state == "" {
		state = decoded.Instance.State
	}
	if !strings.EqualFold(state, "open") {
		return fmt.Errorf("%w: state=%s", ErrSessionNotReady, state)
	}
	return nil
}

// pace sleeps a randomized interval after a successful send so the gateway
// is not flooded by the worker pool.
func (c *EvolutionClient) pace(ctx context.Context) {
	window := c.pacingMax - c.pacingMin
	delay := c.pacingMin + time.Duration(rand.Int63n(int64(window)+1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
