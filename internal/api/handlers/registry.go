package handlers

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/truststack/internal/api"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/go-chi/chi/v5"
)

// RegistryHandler serves the taxonomy and pack catalog. Each request reads
// one registry snapshot.
type RegistryHandler struct {
	source service.RegistrySource
}

func NewRegistryHandler(source service.RegistrySource) *RegistryHandler {
	return &RegistryHandler{source: source}
}

type PackVersionsResponse struct {
	Domain   string   `json:"domain"`
	PackID   string   `json:"pack_id"`
	Versions []string `json:"versions"`
}

type HealthResponse struct {
	Status              string    `json:"status"`
	ConfigRoot          string    `json:"config_root"`
	RegistryFingerprint string    `json:"registry_fingerprint"`
	RegistryLoadedAt    time.Time `json:"registry_loaded_at"`
	Packs               int       `json:"packs"`
}

func (h *RegistryHandler) Health(w http.ResponseWriter, r *http.Request) {
	reg := h.source.Current()
	api.Success(w, http.StatusOK, HealthResponse{
		Status:              "ok",
		ConfigRoot:          reg.Root(),
		RegistryFingerprint: reg.Fingerprint(),
		RegistryLoadedAt:    reg.LoadedAt(),
		Packs:               len(reg.ListPacks()),
	})
}

func (h *RegistryHandler) ListIndustries(w http.ResponseWriter, r *http.Request) {
	industries := h.source.Current().ListIndustries()
	if industries == nil {
		industries = []domain.Industry{}
	}
	api.Success(w, http.StatusOK, industries)
}

func (h *RegistryHandler) GetIndustry(w http.ResponseWriter, r *http.Request) {
	ind, err := h.source.Current().Industry(chi.URLParam(r, "industryID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, ind)
}

func (h *RegistryHandler) GetUseCase(w http.ResponseWriter, r *http.Request) {
	uc, err := h.source.Current().UseCase(
		chi.URLParam(r, "industryID"),
		chi.URLParam(r, "segmentID"),
		chi.URLParam(r, "useCaseID"),
	)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, uc)
}

func (h *RegistryHandler) ListPacks(w http.ResponseWriter, r *http.Request) {
	packs := h.source.Current().ListPacks()
	if packs == nil {
		packs = []domain.PackListing{}
	}
	api.Success(w, http.StatusOK, packs)
}

func (h *RegistryHandler) GetPackVersions(w http.ResponseWriter, r *http.Request) {
	packDomain, packID := chi.URLParam(r, "domain"), chi.URLParam(r, "packID")
	versions, err := h.source.Current().Versions(packDomain, packID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, PackVersionsResponse{Domain: packDomain, PackID: packID, Versions: versions})
}

func (h *RegistryHandler) GetPack(w http.ResponseWriter, r *http.Request) {
	pack, err := h.source.Current().Pack(domain.PackRef{
		Domain:  chi.URLParam(r, "domain"),
		PackID:  chi.URLParam(r, "packID"),
		Version: chi.URLParam(r, "version"),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pack)
}
