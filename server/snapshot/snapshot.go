// Package snapshot persists the router's routing_table across restarts
// (spec.md §6: "a server should be able to persist and reload its routing
// table"), so a restarted server doesn't have to relearn every binding by
// gossip before it can answer lookups for clients it already knew about.
//
// Grounded on the teacher's server/userdb/boltuserdb package (a
// sync.RWMutex-guarded *bolt.DB, buckets created on open, View/Update
// closures per operation) for the bbolt idiom, generalized from a
// single-key-per-user cache to the full set of protocol.RoutingEntry
// records keyed by client public key. Encoding uses fxamacker/cbor rather
// than encoding/json because several nested types here (crypto.PublicKey)
// only expose unexported fields and have no cbor.Marshaler of their own;
// cbor can't reflect through them, so every public-key-bearing field is
// flattened to a raw byte/string/uint64 DTO (entryRecord) before encoding,
// reusing cert.ConnectionToken.Bytes/ParseToken for an exact byte-for-byte
// round trip of the certificate per spec.md §6's "must preserve
// certificate bytes verbatim".
package snapshot

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/hyperborea/hyperborea/cert"
	"github.com/hyperborea/hyperborea/crypto"
	"github.com/hyperborea/hyperborea/protocol"
	"github.com/hyperborea/hyperborea/utils"
)

const routingBucket = "routing_table"

// entryRecord is protocol.RoutingEntry flattened to types fxamacker/cbor
// can encode directly: raw key bytes instead of *crypto.PublicKey, the
// certificate's exact 41-byte token plus its signature instead of the
// nested cert.Certificate struct.
type entryRecord struct {
	ClientPublicKey   []byte
	ClientInfoKind    string
	ClientInfoAddress string
	ClientCertToken   []byte
	ClientCertSign    []byte

	ServerPublicKey []byte
	ServerAddress   string

	CertToken []byte
	CertSign  []byte

	ObservedAt uint64
}

func toRecord(e protocol.RoutingEntry) entryRecord {
	clientKey := e.Client.PublicKey.Bytes()
	serverKey := e.Server.PublicKey.Bytes()
	clientCertToken := e.Client.Certificate.Token.Bytes()
	certToken := e.Certificate.Token.Bytes()

	return entryRecord{
		ClientPublicKey:   clientKey[:],
		ClientInfoKind:    string(e.Client.Info.Kind),
		ClientInfoAddress: e.Client.Info.Address,
		ClientCertToken:   clientCertToken[:],
		ClientCertSign:    e.Client.Certificate.Sign[:],

		ServerPublicKey: serverKey[:],
		ServerAddress:   e.Server.Address,

		CertToken: certToken[:],
		CertSign:  e.Certificate.Sign[:],

		ObservedAt: e.ObservedAt,
	}
}

func fromRecord(r entryRecord) (protocol.RoutingEntry, error) {
	clientKey, err := crypto.ParsePublicKey(r.ClientPublicKey)
	if err != nil {
		return protocol.RoutingEntry{}, fmt.Errorf("snapshot: client public key: %w", err)
	}
	serverKey, err := crypto.ParsePublicKey(r.ServerPublicKey)
	if err != nil {
		return protocol.RoutingEntry{}, fmt.Errorf("snapshot: server public key: %w", err)
	}
	clientCertToken, err := cert.ParseToken(r.ClientCertToken)
	if err != nil {
		return protocol.RoutingEntry{}, fmt.Errorf("snapshot: client certificate token: %w", err)
	}
	certToken, err := cert.ParseToken(r.CertToken)
	if err != nil {
		return protocol.RoutingEntry{}, fmt.Errorf("snapshot: certificate token: %w", err)
	}

	var clientSign, sign crypto.Signature
	copy(clientSign[:], r.ClientCertSign)
	copy(sign[:], r.CertSign)

	server := protocol.Server{PublicKey: serverKey, Address: r.ServerAddress}

	return protocol.RoutingEntry{
		Client: protocol.Client{
			PublicKey:   clientKey,
			Certificate: cert.Certificate{Token: clientCertToken, Sign: clientSign},
			Info:        protocol.ClientInfo{Kind: protocol.ClientKind(r.ClientInfoKind), Address: r.ClientInfoAddress},
		},
		Server:      server,
		Certificate: cert.Certificate{Token: certToken, Sign: sign},
		ObservedAt:  r.ObservedAt,
	}, nil
}

// Store is a bbolt-backed persistence handle for a server's routing_table.
type Store struct {
	mu sync.RWMutex
	db *bolt.DB

	// Reopened reports whether Open found an existing snapshot file on
	// disk rather than creating a fresh one, for callers that want to
	// log a restart-vs-first-boot distinction.
	Reopened bool
}

// Open creates (or loads) a snapshot store at path.
func Open(path string) (*Store, error) {
	reopened := utils.Exists(path)

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(routingBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: init bucket: %w", err)
	}
	return &Store{db: db, Reopened: reopened}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save overwrites the persisted routing_table with entries, keyed by each
// entry's client public key.
func (s *Store) Save(entries []protocol.RoutingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(routingBucket))
		if err := bkt.ForEach(func(k, _ []byte) error {
			return bkt.Delete(k)
		}); err != nil {
			return err
		}

		for _, e := range entries {
			encoded, err := cbor.Marshal(toRecord(e))
			if err != nil {
				return fmt.Errorf("snapshot: encode entry: %w", err)
			}
			keyBytes := e.Client.PublicKey.Bytes()
			if err := bkt.Put(keyBytes[:], encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads back every persisted routing_table entry.
func (s *Store) Load() ([]protocol.RoutingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []protocol.RoutingEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(routingBucket))
		return bkt.ForEach(func(_, v []byte) error {
			var rec entryRecord
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("snapshot: decode entry: %w", err)
			}
			entry, err := fromRecord(rec)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
