package capital

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"corrcrack/market/common"
)

// keepAliveInterval keeps the broker session warm; sessions expire after 10
// minutes of silence, so ping one minute ahead of that.
const keepAliveInterval = 9 * time.Minute

type encryptionKeyResponse struct {
	EncryptionKey string `json:"encryptionKey"`
	TimeStamp     int64  `json:"timeStamp"`
}

type sessionRequest struct {
	Identifier        string `json:"identifier"`
	Password          string `json:"password"`
	EncryptedPassword bool   `json:"encryptedPassword"`
}

type apiErrorResponse struct {
	ErrorCode string `json:"errorCode"`
}

// createSession performs the two-step handshake: fetch the encryption key
// (which doubles as a connectivity and API-key check), then create the
// credentialed session. The broker answers with the two session tokens in
// response headers.
func (e *Capital) createSession(ctx context.Context) error {
	if e.creds.APIKey == "" || e.creds.Identifier == "" {
		return fmt.Errorf("missing broker credentials")
	}

	keyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+"session/encryptionKey", nil)
	if err != nil {
		return err
	}
	keyReq.Header.Set("X-CAP-API-KEY", e.creds.APIKey)
	keyResp, err := e.httpClient.Do(keyReq)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)
	}
	defer keyResp.Body.Close()
	if keyResp.StatusCode != http.StatusOK {
		return fmt.Errorf("encryption key fetch returned status %v", keyResp.StatusCode)
	}
	var key encryptionKeyResponse
	if err := json.NewDecoder(keyResp.Body).Decode(&key); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if key.EncryptionKey == "" {
		return fmt.Errorf("broker returned empty encryption key")
	}

	body, _ := json.Marshal(sessionRequest{
		Identifier: e.creds.Identifier,
		Password:   e.creds.Password,
	})
	sessReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL+"session", bytes.NewReader(body))
	if err != nil {
		return err
	}
	sessReq.Header.Set("X-CAP-API-KEY", e.creds.APIKey)
	sessReq.Header.Set("Content-Type", "application/json")
	sessResp, err := e.httpClient.Do(sessReq)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)
	}
	defer sessResp.Body.Close()
	if sessResp.StatusCode != http.StatusOK {
		byts, _ := io.ReadAll(sessResp.Body)
		var apiErr apiErrorResponse
		_ = json.Unmarshal(byts, &apiErr)
		return fmt.Errorf("session create returned status %v (%v)", sessResp.StatusCode, apiErr.ErrorCode)
	}

	cst := sessResp.Header.Get("CST")
	securityTok := sessResp.Header.Get("X-SECURITY-TOKEN")
	if cst == "" || securityTok == "" {
		return fmt.Errorf("session create response is missing session tokens")
	}
	e.setSessionTokens(cst, securityTok)
	return nil
}

// pingSession keeps the REST session alive and doubles as the health check.
func (e *Capital) pingSession(ctx context.Context) error {
	req, err := e.authedRequest(ctx, http.MethodGet, "ping")
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session ping returned status %v", resp.StatusCode)
	}
	return nil
}

// closeSession logs the session out at the broker.
func (e *Capital) closeSession(ctx context.Context) error {
	req, err := e.authedRequest(ctx, http.MethodDelete, "session")
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrExecutingRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session close returned status %v", resp.StatusCode)
	}
	return nil
}

// keepAlive owns the streaming channel and the 9-minute ping loop. It runs
// independently of request handlers and stops on Disconnect.
type keepAlive struct {
	done chan struct{}
}

type streamPing struct {
	Destination   string `json:"destination"`
	CorrelationID string `json:"correlationId"`
	CST           string `json:"cst"`
	SecurityToken string `json:"securityToken"`
}

// startKeepAlive dials the streaming endpoint (best-effort; an unreachable
// stream degrades to REST-only pings) and starts the ping loop.
func (e *Capital) startKeepAlive() *keepAlive {
	k := &keepAlive{done: make(chan struct{})}

	var conn *websocket.Conn
	if e.streamURL != "" {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(e.streamURL, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Streaming channel dial failed, keeping session alive over REST only")
			conn = nil
		}
	}

	go func() {
		defer func() {
			if conn != nil {
				conn.Close()
			}
		}()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		correlation := 0
		for {
			select {
			case <-ticker.C:
				correlation++
				if conn != nil {
					cst, securityTok := e.sessionTokens()
					ping := streamPing{
						Destination:   "ping",
						CorrelationID: fmt.Sprintf("%d", correlation),
						CST:           cst,
						SecurityToken: securityTok,
					}
					if err := conn.WriteJSON(ping); err != nil {
						log.Warn().Err(err).Msg("Streaming ping failed")
					}
				}
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := e.pingSession(ctx); err != nil {
					log.Warn().Err(err).Msg("Session keep-alive ping failed")
				}
				cancel()
			case <-k.done:
				return
			}
		}
	}()
	return k
}

func (k *keepAlive) stop() { close(k.done) }
