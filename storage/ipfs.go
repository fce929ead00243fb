package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/multiformats/go-multihash"
	"github.com/ruteri/dice-device-identity/interfaces"
)

// IPFSBackend publishes artifacts to an IPFS node.
//
// Artifacts are added as CIDv1 raw leaves hashed with sha2-256, so for artifacts
// smaller than one chunk the IPFS CID wraps exactly the content ID and Fetch can
// address the block without any index.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	pin         bool
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a new IPFS storage backend using the node API at host:port.
func NewIPFSBackend(host, port string, timeout time.Duration, pin bool, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		pin:         pin,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s&pin=%t", apiURL, timeout, pin),
	}, nil
}

// CIDFor returns the IPFS CID under which an artifact with the given content ID is stored.
func CIDFor(id interfaces.ContentID) (cid.Cid, error) {
	mh, err := multihash.Encode(id.Bytes(), multihash.SHA2_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Fetch retrieves an artifact by content ID. The kind is not part of the IPFS address.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, kind interfaces.ArtifactKind) ([]byte, error) {
	start := time.Now()

	c, err := CIDFor(id)
	if err != nil {
		return nil, err
	}
	ipfsPath := "/ipfs/" + c.String()

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(ipfsPath)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no link named") {
			b.log.Debug("Artifact not found in IPFS",
				slog.String("path", ipfsPath),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to fetch artifact from IPFS",
			slog.String("path", ipfsPath),
			"err", err)
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	if interfaces.ComputeID(data) != id {
		b.log.Error("IPFS returned content with mismatching hash",
			slog.String("path", ipfsPath),
			slog.String("kind", kind.String()))
		return nil, fmt.Errorf("%w: content hash mismatch for %s", interfaces.ErrContentIntegrity, id)
	}

	b.log.Debug("Fetched artifact from IPFS",
		slog.String("path", ipfsPath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store adds a public artifact to IPFS and returns its content ID.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, kind interfaces.ArtifactKind) (interfaces.ContentID, error) {
	if err := interfaces.CheckPublishable(kind); err != nil {
		return interfaces.ContentID{}, err
	}

	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	added, err := b.shell.Add(bytes.NewReader(data),
		shell.CidVersion(1),
		shell.RawLeaves(true),
		shell.Hash("sha2-256"),
		shell.Pin(b.pin),
	)
	if err != nil {
		return id, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	if expected, err := CIDFor(id); err == nil && expected.String() != added {
		// Multi-chunk artifacts get a DAG root instead of a raw leaf.
		b.log.Warn("IPFS CID does not wrap the content ID, artifact will not be fetchable by ID",
			slog.String("ipfs_cid", added),
			slog.String("expected_cid", expected.String()))
	}

	b.log.Debug("Stored artifact in IPFS",
		slog.String("ipfs_cid", added),
		slog.String("content_id", id.String()),
		slog.String("kind", kind.String()))

	return id, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
