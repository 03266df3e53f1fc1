package harmony

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/entity"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

// requestTimeout plazo fijo para toda petición contra la plataforma.
const requestTimeout = 30 * time.Second

// Outcome clasificación del resultado de una petición.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"         // 2xx
	OutcomeUnauthorised   Outcome = "unauthorised"    // 401: problema de credenciales, no reintentable
	OutcomeInvalidPayload Outcome = "invalid_payload" // 400: payload rechazado, no reintentable
	OutcomeServiceFailure Outcome = "service_failure" // otros 4xx/5xx, timeout o fallo de red: recuperable
)

// Response respuesta clasificada de la plataforma.
type Response struct {
	StatusCode int
	Body       []byte
	Outcome    Outcome
}

// Ok indica si la petición fue exitosa (2xx).
func (r *Response) Ok() bool { return r.Outcome == OutcomeSuccess }

// Transport define el puerto de salida hacia Fiscal Harmony.
// La implementación concreta es Client; para tests se inyecta un mock.
type Transport interface {
	Get(ctx context.Context, route string) (*Response, error)
	// Post y Put llevan el payload ya en forma canónica: se firma tal cual.
	Post(ctx context.Context, route string, payload []byte) (*Response, error)
	Put(ctx context.Context, route string, payload []byte) (*Response, error)
	Delete(ctx context.Context, route string) (*Response, error)
}

var _ Transport = (*Client)(nil)

// Config credenciales y headers de identificación del cliente.
type Config struct {
	Endpoint    string // URL base, ej: https://api.fiscalharmony.co.zw/api
	APIKey      string
	APISecret   string
	Application string // X-Application
	Station     string // X-App-Station
}

// Client implementa Transport sobre net/http con timeout fijo de 30 s.
// Cada petición, cualquiera sea su resultado, genera exactamente una entrada
// en el log de auditoría antes de retornar; los 2xx además actualizan el
// indicador last_successful_request.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logs       repository.LogRepository
	mappings   repository.MappingRepository
	log        *logger.Logger
}

// NewClient construye el cliente de la plataforma.
func NewClient(cfg Config, logs repository.LogRepository, mappings repository.MappingRepository, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		cfg:        cfg,
		logs:       logs,
		mappings:   mappings,
		log:        log.Component("harmony-client"),
	}
}

// Get petición GET sin firma (lecturas).
func (c *Client) Get(ctx context.Context, route string) (*Response, error) {
	return c.do(ctx, http.MethodGet, route, nil)
}

// Post petición POST firmada.
func (c *Client) Post(ctx context.Context, route string, payload []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, route, payload)
}

// Put petición PUT firmada.
func (c *Client) Put(ctx context.Context, route string, payload []byte) (*Response, error) {
	return c.do(ctx, http.MethodPut, route, payload)
}

// Delete petición DELETE sin body.
func (c *Client) Delete(ctx context.Context, route string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, route, nil)
}

func (c *Client) do(ctx context.Context, method, route string, payload []byte) (*Response, error) {
	url := c.requestURL(route)

	logEntry := &entity.FiscalLog{
		CreatedAt:  time.Now(),
		RequestURL: url,
		Payload:    string(payload),
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("harmony: crear request %s %s: %w", method, route, err)
	}
	c.setHeaders(req, payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Sin respuesta HTTP: timeout o fallo de red, ambos recuperables.
		logEntry.Status = entity.LogStatusFailure
		logEntry.ResponseStatusCode = http.StatusInternalServerError
		logEntry.ErrorDetails = err.Error()
		c.writeLog(ctx, logEntry)
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, fmt.Errorf("harmony: %s %s: %w", method, route, domain.ErrTimeout)
		}
		return nil, fmt.Errorf("harmony: %s %s: %w", method, route, domain.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		logEntry.Status = entity.LogStatusFailure
		logEntry.ResponseStatusCode = resp.StatusCode
		logEntry.ErrorDetails = err.Error()
		c.writeLog(ctx, logEntry)
		return nil, fmt.Errorf("harmony: leer respuesta de %s: %w", route, domain.ErrServiceUnavailable)
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Body:       rawBody,
		Outcome:    classify(resp.StatusCode),
	}

	logEntry.Response = string(rawBody)
	logEntry.ResponseStatusCode = resp.StatusCode
	switch result.Outcome {
	case OutcomeSuccess:
		logEntry.Status = entity.LogStatusSuccess
		c.touchLiveness(ctx)
	case OutcomeUnauthorised:
		logEntry.Status = entity.LogStatusUnauthorised
	case OutcomeInvalidPayload:
		logEntry.Status = entity.LogStatusInvalidJSON
	default:
		logEntry.Status = entity.LogStatusFailure
	}
	c.writeLog(ctx, logEntry)

	return result, nil
}

// requestURL arma la URL aceptando rutas con o sin "/" inicial.
func (c *Client) requestURL(route string) string {
	if strings.HasPrefix(route, "/") {
		return c.cfg.Endpoint + route
	}
	return c.cfg.Endpoint + "/" + route
}

// setHeaders agrega los headers de identificación, y la firma cuando hay body.
func (c *Client) setHeaders(req *http.Request, payload []byte) {
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Application", c.cfg.Application)
	req.Header.Set("X-App-Station", c.cfg.Station)
	if payload != nil {
		req.Header.Set("X-Api-Signature", Sign(payload, []byte(c.cfg.APISecret)))
		req.Header.Set("Content-Type", "application/json")
	}
}

func classify(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusUnauthorized:
		return OutcomeUnauthorised
	case status == http.StatusBadRequest:
		return OutcomeInvalidPayload
	default:
		return OutcomeServiceFailure
	}
}

// writeLog inserta la entrada de auditoría. Un fallo al loguear no debe
// tumbar la operación: se reporta y se continúa.
func (c *Client) writeLog(ctx context.Context, logEntry *entity.FiscalLog) {
	if err := c.logs.Insert(ctx, logEntry); err != nil {
		c.log.Error().Err(err).
			Str("request_url", logEntry.RequestURL).
			Str("status", logEntry.Status).
			Msg("no se pudo insertar la entrada de auditoría")
	}
}

func (c *Client) touchLiveness(ctx context.Context) {
	if err := c.mappings.TouchLastSuccessfulRequest(ctx, time.Now()); err != nil {
		c.log.Warn().Err(err).Msg("no se pudo actualizar last_successful_request")
	}
}
