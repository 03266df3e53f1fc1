package fiscal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tu-usuario/fiscal-bridge/internal/domain"
	"github.com/tu-usuario/fiscal-bridge/internal/domain/repository"
	"github.com/tu-usuario/fiscal-bridge/internal/infrastructure/harmony"
	"github.com/tu-usuario/fiscal-bridge/pkg/logger"
)

// MappingSync replica los mapeos de moneda e impuestos hacia la cuenta de
// Fiscal Harmony: crea los que faltan, actualiza los existentes y borra los
// remotos huérfanos. La tabla local es la fuente de verdad.
type MappingSync struct {
	mappings  repository.MappingRepository
	transport harmony.Transport
	log       *logger.Logger
}

func NewMappingSync(mappings repository.MappingRepository, transport harmony.Transport, log *logger.Logger) *MappingSync {
	return &MappingSync{mappings: mappings, transport: transport, log: log.Component("mapping-sync")}
}

// remoteMapping fila de mapeo tal como la expone la plataforma.
type remoteMapping struct {
	Id int `json:"Id"`
}

// Profile devuelve el perfil de la cuenta en la plataforma.
func (s *MappingSync) Profile(ctx context.Context) (map[string]any, error) {
	resp, err := s.transport.Get(ctx, "/profile")
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("mapping-sync: perfil: HTTP %d: %w", resp.StatusCode, outcomeError(resp.Outcome))
	}
	var profile map[string]any
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, fmt.Errorf("mapping-sync: decodificar perfil: %w", err)
	}
	return profile, nil
}

// profileUserID obtiene el Id numérico del perfil; los mapeos remotos se
// asocian a ese usuario.
func (s *MappingSync) profileUserID(ctx context.Context) (int, error) {
	profile, err := s.Profile(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := profile["Id"].(float64)
	if !ok || id == 0 {
		return 0, fmt.Errorf("mapping-sync: el perfil no tiene Id: %w", domain.ErrInvalidInput)
	}
	return int(id), nil
}

// DeviceInfo devuelve la información del dispositivo fiscal registrado.
func (s *MappingSync) DeviceInfo(ctx context.Context) (map[string]any, error) {
	resp, err := s.transport.Get(ctx, "/fiscaldevice")
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("mapping-sync: dispositivo: HTTP %d: %w", resp.StatusCode, outcomeError(resp.Outcome))
	}
	var info map[string]any
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return nil, fmt.Errorf("mapping-sync: decodificar dispositivo: %w", err)
	}
	return info, nil
}

// CheckSupportedCurrencies devuelve las monedas mapeadas localmente que la
// plataforma no soporta.
func (s *MappingSync) CheckSupportedCurrencies(ctx context.Context) ([]string, error) {
	resp, err := s.transport.Get(ctx, "/currencymapping/supported-currencies")
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("mapping-sync: monedas soportadas: HTTP %d: %w", resp.StatusCode, outcomeError(resp.Outcome))
	}
	var supported []string
	if err := json.Unmarshal(resp.Body, &supported); err != nil {
		return nil, fmt.Errorf("mapping-sync: decodificar monedas: %w", err)
	}
	set := make(map[string]struct{}, len(supported))
	for _, c := range supported {
		set[c] = struct{}{}
	}

	local, err := s.mappings.ListCurrencyMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("mapping-sync: listar mapeos de moneda: %w", err)
	}
	var unsupported []string
	for _, m := range local {
		if _, ok := set[m.TargetCurrency]; !ok {
			unsupported = append(unsupported, m.TargetCurrency)
		}
	}
	return unsupported, nil
}

// SyncTaxMappings empuja los mapeos de impuestos locales y borra los remotos
// que ya no existen localmente.
func (s *MappingSync) SyncTaxMappings(ctx context.Context) error {
	userID, err := s.profileUserID(ctx)
	if err != nil {
		return err
	}

	local, err := s.mappings.ListTaxMappings(ctx)
	if err != nil {
		return fmt.Errorf("mapping-sync: listar mapeos de impuestos: %w", err)
	}

	for _, m := range local {
		body := map[string]any{
			"UserId":           userID,
			"TaxCode":          m.TaxCode,
			"DestinationTaxId": m.DestinationTaxID,
		}
		remoteID, err := s.push(ctx, "taxmapping", m.RemoteID, body)
		if err != nil {
			return err
		}
		if remoteID != m.RemoteID {
			m.RemoteID = remoteID
			if err := s.mappings.SaveTaxMapping(ctx, m); err != nil {
				return fmt.Errorf("mapping-sync: guardar id remoto del impuesto %s: %w", m.TaxCode, err)
			}
		}
	}

	known := make(map[int]struct{}, len(local))
	for _, m := range local {
		known[m.RemoteID] = struct{}{}
	}
	return s.pruneRemote(ctx, "taxmapping", known)
}

// SyncCurrencyMappings empuja los mapeos de moneda locales y borra los
// remotos huérfanos.
func (s *MappingSync) SyncCurrencyMappings(ctx context.Context) error {
	userID, err := s.profileUserID(ctx)
	if err != nil {
		return err
	}

	local, err := s.mappings.ListCurrencyMappings(ctx)
	if err != nil {
		return fmt.Errorf("mapping-sync: listar mapeos de moneda: %w", err)
	}

	for _, m := range local {
		body := map[string]any{
			"UserId":              userID,
			"SourceCurrency":      m.SystemCurrency,
			"DestinationCurrency": m.TargetCurrency,
		}
		remoteID, err := s.push(ctx, "currencymapping", m.RemoteID, body)
		if err != nil {
			return err
		}
		if remoteID != m.RemoteID {
			m.RemoteID = remoteID
			if err := s.mappings.SaveCurrencyMapping(ctx, m); err != nil {
				return fmt.Errorf("mapping-sync: guardar id remoto de la moneda %s: %w", m.SystemCurrency, err)
			}
		}
	}

	known := make(map[int]struct{}, len(local))
	for _, m := range local {
		known[m.RemoteID] = struct{}{}
	}
	return s.pruneRemote(ctx, "currencymapping", known)
}

// push crea (POST) o actualiza (PUT) un mapeo remoto y devuelve su id.
// Las actualizaciones llevan el Id del recurso también en el body.
func (s *MappingSync) push(ctx context.Context, kind string, remoteID int, body map[string]any) (int, error) {
	if remoteID != 0 {
		body["Id"] = remoteID
	}
	payload, err := harmony.EncodeCanonical(body)
	if err != nil {
		return 0, err
	}

	if remoteID != 0 {
		resp, err := s.transport.Put(ctx, "/"+kind+"/"+strconv.Itoa(remoteID), payload)
		if err != nil {
			return 0, err
		}
		if !resp.Ok() {
			return 0, fmt.Errorf("mapping-sync: actualizar %s %d: HTTP %d: %w",
				kind, remoteID, resp.StatusCode, outcomeError(resp.Outcome))
		}
		return remoteID, nil
	}

	resp, err := s.transport.Post(ctx, "/"+kind, payload)
	if err != nil {
		return 0, err
	}
	if !resp.Ok() {
		return 0, fmt.Errorf("mapping-sync: crear %s: HTTP %d: %w", kind, resp.StatusCode, outcomeError(resp.Outcome))
	}
	var created remoteMapping
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return 0, fmt.Errorf("mapping-sync: decodificar %s creado: %w", kind, err)
	}
	return created.Id, nil
}

// pruneRemote borra los mapeos remotos cuyo id no existe localmente.
func (s *MappingSync) pruneRemote(ctx context.Context, kind string, known map[int]struct{}) error {
	resp, err := s.transport.Get(ctx, "/"+kind)
	if err != nil {
		return err
	}
	if !resp.Ok() {
		return fmt.Errorf("mapping-sync: listar %s remotos: HTTP %d: %w", kind, resp.StatusCode, outcomeError(resp.Outcome))
	}
	var remote []remoteMapping
	if err := json.Unmarshal(resp.Body, &remote); err != nil {
		return fmt.Errorf("mapping-sync: decodificar lista de %s: %w", kind, err)
	}

	for _, r := range remote {
		if _, ok := known[r.Id]; ok {
			continue
		}
		resp, err := s.transport.Delete(ctx, "/"+kind+"/"+strconv.Itoa(r.Id))
		if err != nil {
			return err
		}
		if !resp.Ok() {
			return fmt.Errorf("mapping-sync: borrar %s %d: HTTP %d: %w",
				kind, r.Id, resp.StatusCode, outcomeError(resp.Outcome))
		}
		s.log.Info().Str("kind", kind).Int("remote_id", r.Id).Msg("mapeo remoto huérfano eliminado")
	}
	return nil
}

// outcomeError traduce la clasificación de una respuesta a un error de dominio.
func outcomeError(o harmony.Outcome) error {
	switch o {
	case harmony.OutcomeUnauthorised:
		return domain.ErrUnauthorized
	case harmony.OutcomeInvalidPayload:
		return domain.ErrMalformedPayload
	default:
		return domain.ErrServiceUnavailable
	}
}
