package etaome

import (
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/ovillellas/hexrd/internal/crystal"
	"github.com/ovillellas/hexrd/internal/monitoring"
	"github.com/ovillellas/hexrd/internal/rotations"
)

// schemaVersion is the current cache layout version. Loading a cache written
// with a different version fails with ErrNoMaps so callers regenerate.
const schemaVersion = 1

//go:embed schema.sql
var schemaSQL string

// ErrNoMaps is returned by LoadLatest when the cache holds no usable map
// set. Callers treat it as "regenerate the maps", never as a fatal error.
var ErrNoMaps = errors.New("etaome: no cached map set")

// Store persists eta-omega map sets in SQLite using an explicit, versioned
// layout: JSON metadata plus raw little-endian float64 grid blobs.
type Store struct {
	db    *sql.DB
	owned bool
}

// Open opens (creating if needed) a cache database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("etaome store: open %s: %w", path, err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore wraps an existing database connection, ensuring the schema
// exists. The caller retains ownership of db.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("etaome store: apply schema: %w", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM etaome_schema_version`).Scan(&n); err != nil {
		return nil, fmt.Errorf("etaome store: read schema version: %w", err)
	}
	if n == 0 {
		if _, err := db.Exec(`INSERT INTO etaome_schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return nil, fmt.Errorf("etaome store: stamp schema version: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database if this store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// planeDataJSON is the serialized form of crystal.PlaneData.
type planeDataJSON struct {
	HKLs       [][3]int  `json:"hkls"`
	TTh        []float64 `json:"tth"`
	BMat       []float64 `json:"b_mat"` // 9 values, row-major
	Laue       string    `json:"laue_group"`
	Wavelength float64   `json:"wavelength"`
}

func marshalPlaneData(pd *crystal.PlaneData) ([]byte, error) {
	j := planeDataJSON{
		TTh:        pd.TTh,
		Laue:       pd.Laue.String(),
		Wavelength: pd.Wavelength,
	}
	for _, h := range pd.HKLs {
		j.HKLs = append(j.HKLs, [3]int{h.H, h.K, h.L})
	}
	b := pd.BMat()
	j.BMat = make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			j.BMat = append(j.BMat, b.At(r, c))
		}
	}
	return json.Marshal(j)
}

func unmarshalPlaneData(data []byte) (*crystal.PlaneData, error) {
	var j planeDataJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if len(j.BMat) != 9 {
		return nil, fmt.Errorf("plane data blob has %d B matrix entries", len(j.BMat))
	}
	laue, err := rotations.ParseLaueGroup(j.Laue)
	if err != nil {
		return nil, err
	}
	hkls := make([]crystal.HKL, len(j.HKLs))
	for i, h := range j.HKLs {
		hkls[i] = crystal.HKL{H: h[0], K: h[1], L: h[2]}
	}
	return crystal.NewPlaneData(hkls, j.TTh, mat.NewDense(3, 3, j.BMat), laue, j.Wavelength)
}

func gridToBlob(g *mat.Dense) []byte {
	rows, cols := g.Dims()
	blob := make([]byte, 8*rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			binary.LittleEndian.PutUint64(blob[8*(r*cols+c):], math.Float64bits(g.At(r, c)))
		}
	}
	return blob
}

func blobToGrid(blob []byte, rows, cols int) (*mat.Dense, error) {
	if len(blob) != 8*rows*cols {
		return nil, fmt.Errorf("grid blob has %d bytes, expected %d", len(blob), 8*rows*cols)
	}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return mat.NewDense(rows, cols, data), nil
}

// SaveMaps persists a map set and returns its id.
func (s *Store) SaveMaps(m *EtaOmeMaps) (int64, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("etaome store: refusing to save invalid maps: %w", err)
	}

	omeJSON, err := json.Marshal(m.OmeEdges)
	if err != nil {
		return 0, err
	}
	etaJSON, err := json.Marshal(m.EtaEdges)
	if err != nil {
		return 0, err
	}
	pdJSON, err := marshalPlaneData(m.PlaneData)
	if err != nil {
		return 0, fmt.Errorf("etaome store: serialize plane data: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO etaome_map_set (created_unix_nanos, ome_edges_json, eta_edges_json, plane_data_json)
		 VALUES (?, ?, ?, ?)`,
		time.Now().UnixNano(), string(omeJSON), string(etaJSON), string(pdJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("etaome store: insert map set: %w", err)
	}
	setID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, g := range m.Maps {
		rows, cols := g.Dims()
		if _, err := tx.Exec(
			`INSERT INTO etaome_map (set_id, hkl_id, grid_rows, grid_cols, grid_blob)
			 VALUES (?, ?, ?, ?, ?)`,
			setID, m.HKLIDs[i], rows, cols, gridToBlob(g),
		); err != nil {
			return 0, fmt.Errorf("etaome store: insert map for hkl %d: %w", m.HKLIDs[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	monitoring.Logf("[EtaOmeStore] Saved map set %d (%d maps, %dx%d bins)",
		setID, len(m.Maps), len(m.OmeEdges)-1, len(m.EtaEdges)-1)
	return setID, nil
}

// LoadLatest returns the most recently saved map set, or ErrNoMaps when the
// cache is empty, unreadable or written with an unexpected schema version.
func (s *Store) LoadLatest() (*EtaOmeMaps, error) {
	var version int
	if err := s.db.QueryRow(`SELECT version FROM etaome_schema_version`).Scan(&version); err != nil {
		return nil, ErrNoMaps
	}
	if version != schemaVersion {
		monitoring.Logf("[EtaOmeStore] Cache schema version %d != %d, ignoring cache", version, schemaVersion)
		return nil, ErrNoMaps
	}

	var (
		setID                  int64
		omeJSON, etaJSON, pdTx string
	)
	err := s.db.QueryRow(
		`SELECT set_id, ome_edges_json, eta_edges_json, plane_data_json
		 FROM etaome_map_set ORDER BY created_unix_nanos DESC, set_id DESC LIMIT 1`,
	).Scan(&setID, &omeJSON, &etaJSON, &pdTx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMaps
	}
	if err != nil {
		return nil, fmt.Errorf("etaome store: read map set: %w", err)
	}

	m := &EtaOmeMaps{}
	if err := json.Unmarshal([]byte(omeJSON), &m.OmeEdges); err != nil {
		return nil, fmt.Errorf("etaome store: decode omega edges: %w", err)
	}
	if err := json.Unmarshal([]byte(etaJSON), &m.EtaEdges); err != nil {
		return nil, fmt.Errorf("etaome store: decode eta edges: %w", err)
	}
	if m.PlaneData, err = unmarshalPlaneData([]byte(pdTx)); err != nil {
		return nil, fmt.Errorf("etaome store: decode plane data: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT hkl_id, grid_rows, grid_cols, grid_blob FROM etaome_map
		 WHERE set_id = ? ORDER BY hkl_id`, setID,
	)
	if err != nil {
		return nil, fmt.Errorf("etaome store: read maps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			hklID, nr, nc int
			blob          []byte
		)
		if err := rows.Scan(&hklID, &nr, &nc, &blob); err != nil {
			return nil, fmt.Errorf("etaome store: scan map row: %w", err)
		}
		g, err := blobToGrid(blob, nr, nc)
		if err != nil {
			return nil, fmt.Errorf("etaome store: map for hkl %d: %w", hklID, err)
		}
		m.HKLIDs = append(m.HKLIDs, hklID)
		m.Maps = append(m.Maps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		monitoring.Logf("[EtaOmeStore] Cached map set %d failed validation (%v), ignoring cache", setID, err)
		return nil, ErrNoMaps
	}
	monitoring.Logf("[EtaOmeStore] Loaded map set %d (%d maps)", setID, len(m.Maps))
	return m, nil
}
