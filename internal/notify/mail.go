package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EmailSender delivers one rendered message. Implementations must not
// matter to the lifecycle layer; failures are logged and swallowed there.
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// HTTPMailClient posts JSON to a transactional-mail provider endpoint
// using a bearer key.
type HTTPMailClient struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewHTTPMailClient(endpoint, key string) *HTTPMailClient {
	return &HTTPMailClient{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (c *HTTPMailClient) SendEmail(to, subject, body string) error {
	payload := map[string]string{"to": to, "subject": subject, "body": body}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, c.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Key != "" {
		req.Header.Set("Authorization", "Bearer "+c.Key)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail provider status %d", resp.StatusCode)
	}
	return nil
}
