// Package source implements the HTTP-facing source lifecycle: creating a
// source (pdf upload, or text/url ingestion), listing, fetching, and
// deleting it. Creation writes the row in UPLOADED state and publishes an
// ingestion task; the worker tier (internal/worker, internal/ingest) does
// the actual extract/chunk/embed work.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"citeground/internal/apperr"
	"citeground/internal/config"
	"citeground/internal/domain"
	"citeground/internal/middleware"
	"citeground/internal/store"
	"citeground/internal/worker"
)

// ErrHostNotAllowed is returned by CreateURL when the host is a loopback,
// private, link-local, reserved, or multicast address (always blocked), or
// when URL_ALLOWLIST is set and the host isn't on it. The handler maps this
// to 403.
var ErrHostNotAllowed = errors.New("host not allowed")

// Repository is the subset of store.SourceRepo the service needs.
type Repository interface {
	Create(ctx context.Context, s *domain.Source) error
	Get(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context, f store.ListFilter) ([]domain.Source, error)
	SetIngestTaskID(ctx context.Context, id, taskID string) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher is satisfied directly by *nsq.Producer.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Resolver looks up the IP addresses a hostname resolves to. Production
// code uses the real DNS resolver; tests substitute a stub to stay offline.
type Resolver func(ctx context.Context, host string) ([]net.IP, error)

func defaultResolver(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

// Service implements source creation, listing, and deletion.
type Service struct {
	repo         Repository
	pub          EventPublisher
	storageRoot  string
	urlAllowlist []string
	resolve      Resolver
}

func NewService(repo Repository, pub EventPublisher, storageRoot string, urlAllowlist string) *Service {
	return &Service{
		repo:         repo,
		pub:          pub,
		storageRoot:  storageRoot,
		urlAllowlist: parseAllowlist(urlAllowlist),
		resolve:      defaultResolver,
	}
}

// SetResolver overrides the DNS resolver hostAllowed uses for its
// anti-rebinding check.
func (s *Service) SetResolver(r Resolver) {
	s.resolve = r
}

func parseAllowlist(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CreatePDF stores the uploaded bytes under STORAGE_ROOT/<id>.pdf, writes
// the source row in UPLOADED, and publishes an ingestion task.
func (s *Service) CreatePDF(ctx context.Context, title, originalFilename string, data []byte) (*domain.Source, error) {
	id := uuid.NewString()
	storagePath := id + ".pdf"

	if err := s.writeBlob(storagePath, data); err != nil {
		return nil, err
	}

	src := &domain.Source{
		ID:               id,
		Title:            firstNonEmpty(title, originalFilename),
		Type:             domain.SourceTypePDF,
		OriginalFilename: originalFilename,
		Status:           domain.SourceUploaded,
	}
	if err := s.repo.Create(ctx, src); err != nil {
		_ = os.Remove(s.blobPath(storagePath))
		return nil, err
	}

	s.publish(ctx, src.ID, worker.IngestTaskPayload{
		SourceID:    src.ID,
		SourceType:  string(src.Type),
		StoragePath: storagePath,
	})
	return src, nil
}

// CreateText stores the given text under STORAGE_ROOT/<id>.txt and
// publishes an ingestion task.
func (s *Service) CreateText(ctx context.Context, title, text string) (*domain.Source, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("text is required")
	}

	id := uuid.NewString()
	storagePath := id + ".txt"
	if err := s.writeBlob(storagePath, []byte(text)); err != nil {
		return nil, err
	}

	src := &domain.Source{
		ID:     id,
		Title:  firstNonEmpty(title, "untitled"),
		Type:   domain.SourceTypeText,
		Status: domain.SourceUploaded,
	}
	if err := s.repo.Create(ctx, src); err != nil {
		_ = os.Remove(s.blobPath(storagePath))
		return nil, err
	}

	s.publish(ctx, src.ID, worker.IngestTaskPayload{
		SourceID:    src.ID,
		SourceType:  string(src.Type),
		StoragePath: storagePath,
	})
	return src, nil
}

// CreateURL validates rawURL's host against the configured allowlist (when
// set), writes the source row, and publishes an ingestion task that fetches
// the URL directly — no local blob is stored.
func (s *Service) CreateURL(ctx context.Context, title, rawURL string) (*domain.Source, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, apperr.Validation("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, apperr.Validation("url is not a valid absolute URL")
	}
	if !s.hostAllowed(ctx, parsed.Hostname()) {
		return nil, fmt.Errorf("%w: %q", ErrHostNotAllowed, parsed.Hostname())
	}

	src := &domain.Source{
		ID:     uuid.NewString(),
		Title:  firstNonEmpty(title, rawURL),
		Type:   domain.SourceTypeURL,
		Status: domain.SourceUploaded,
	}
	if err := s.repo.Create(ctx, src); err != nil {
		return nil, err
	}

	s.publish(ctx, src.ID, worker.IngestTaskPayload{
		SourceID:   src.ID,
		SourceType: string(src.Type),
		URL:        rawURL,
	})
	return src, nil
}

// blockedHosts mirrors the literal loopback aliases a hostile source might
// supply directly, before any DNS resolution is attempted.
var blockedHosts = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"127.0.0.1":             true,
	"0.0.0.0":               true,
	"::1":                   true,
}

// reservedCIDRs are IANA special-purpose ranges not covered by net.IP's
// IsPrivate/IsLoopback/IsLinkLocal*/IsMulticast/IsUnspecified checks.
var reservedCIDRs = mustParseCIDRs(
	"0.0.0.0/8",
	"100.64.0.0/10",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"240.0.0.0/4",
	"255.255.255.255/32",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// isPublicIP blocks loopback, private, link-local, multicast, unspecified,
// and reserved ranges, independent of any allowlist — this is the floor
// every URL source must clear regardless of configuration.
func isPublicIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return false
	}
	for _, n := range reservedCIDRs {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

// resolvedHostIsPublic re-resolves host via DNS and checks every returned
// address, not just the literal hostname, to catch a rebinding attack where
// an allowlisted name now resolves to a private or loopback address.
func (s *Service) resolvedHostIsPublic(ctx context.Context, host string) bool {
	ips, err := s.resolve(ctx, host)
	if err != nil || len(ips) == 0 {
		return false
	}
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return false
		}
	}
	return true
}

// hostMatchesAllowlist supports exact entries plus "*.example.com" and
// ".example.com" wildcard entries matching any subdomain of example.com
// (but not example.com itself).
func hostMatchesAllowlist(host string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, entry := range allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == host {
			return true
		}
		var base string
		switch {
		case strings.HasPrefix(entry, "*.") && len(entry) > 2:
			base = entry[2:]
		case strings.HasPrefix(entry, ".") && len(entry) > 1:
			base = entry[1:]
		default:
			continue
		}
		if host != base && strings.HasSuffix(host, "."+base) {
			return true
		}
	}
	return false
}

// hostAllowed enforces the SSRF floor unconditionally — loopback, private,
// link-local, reserved, and multicast hosts are blocked even with no
// allowlist configured — then applies the allowlist, if any, on top.
func (s *Service) hostAllowed(ctx context.Context, host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || blockedHosts[host] {
		return false
	}
	if !hostMatchesAllowlist(host, s.urlAllowlist) {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return isPublicIP(ip)
	}
	return s.resolvedHostIsPublic(ctx, host)
}

func (s *Service) publish(ctx context.Context, sourceID string, payload worker.IngestTaskPayload) {
	payload.CorrelationID = middleware.GetCorrelationID(ctx)
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.pub.Publish(config.TopicIngestDocument, body); err != nil {
		return
	}
	_ = s.repo.SetIngestTaskID(ctx, sourceID, payload.CorrelationID)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f store.ListFilter) ([]domain.Source, error) {
	return s.repo.List(ctx, f)
}

// Delete removes the source row (cascading to its chunks, and any
// query/answer rows scoped to it) and best-effort removes its on-disk
// blob, if it has one (url sources never had one).
func (s *Service) Delete(ctx context.Context, id string) error {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if ext := blobExt(src.Type); ext != "" {
		_ = os.Remove(s.blobPath(id + ext))
	}
	return nil
}

func blobExt(t domain.SourceType) string {
	switch t {
	case domain.SourceTypePDF:
		return ".pdf"
	case domain.SourceTypeText:
		return ".txt"
	default:
		return ""
	}
}

func (s *Service) blobPath(storagePath string) string {
	if s.storageRoot == "" {
		return storagePath
	}
	return filepath.Join(s.storageRoot, storagePath)
}

func (s *Service) writeBlob(storagePath string, data []byte) error {
	path := s.blobPath(storagePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return apperr.Wrap(apperr.KindStore, "create storage directory", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil { // #nosec G306 -- path is derived from a generated uuid, not user input
		return apperr.Wrap(apperr.KindStore, "write source blob", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
