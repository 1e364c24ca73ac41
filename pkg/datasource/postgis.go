package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/1F47E/geo-region-tiles/pkg/models"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb/encoding/wkb"
)

const geomColumn = "__geom"

// connection pools shared by every layer pointing at the same database
var pools = struct {
	sync.Mutex
	m map[string]*sql.DB
}{m: make(map[string]*sql.DB)}

// PostGIS reads features from a PostGIS table or subquery. The "table" param
// is used verbatim in the FROM clause, e.g. "(select geom, name from roads) as r".
type PostGIS struct {
	dsn       string
	table     string
	geomField string
	srid      int
	idField   string
	maxConns  int
}

// NewPostGIS builds a PostGIS datasource. Connection params are either a
// "dsn" or host/port/user/password/dbname.
func NewPostGIS(params Params) (Datasource, error) {
	table := params["table"]
	if table == "" {
		return nil, errors.New("postgis datasource needs a table param")
	}

	dsn := params["dsn"]
	if dsn == "" {
		port := params["port"]
		if port == "" {
			port = "5432"
		}
		if _, err := strconv.Atoi(port); err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", port, err)
		}
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			params["host"], port, params["user"], params["password"], params["dbname"])
		if t := params["connect_timeout"]; t != "" {
			dsn += " connect_timeout=" + t
		}
	}

	maxConns := 25
	if s := params["max_connections"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid max_connections %q", s)
		}
		maxConns = n
	}

	srid := 3857
	if s := params["srid"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid srid %q: %w", s, err)
		}
		srid = n
	}

	geomField := params["geometry_field"]
	if geomField == "" {
		geomField = "geom"
	}
	idField := params["key_field"]
	if idField == "" {
		idField = "id"
	}

	return &PostGIS{
		dsn:       dsn,
		table:     table,
		geomField: geomField,
		srid:      srid,
		idField:   idField,
		maxConns:  maxConns,
	}, nil
}

// openDB returns the pooled connection for dsn, opening it on first use
func openDB(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pools.Lock()
	defer pools.Unlock()

	if db, ok := pools.m[dsn]; ok {
		return db, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pools.m[dsn] = db
	return db, nil
}

// Query returns the SQL run for a box
func (p *PostGIS) Query() string {
	return fmt.Sprintf(`SELECT ST_AsBinary(%q) AS %s, * FROM %s WHERE %q && ST_MakeEnvelope($1, $2, $3, $4, %d)`,
		p.geomField, geomColumn, p.table, p.geomField, p.srid)
}

// Features performs a bounding box query against the table
func (p *PostGIS) Features(ctx context.Context, bbox models.BoundingBox) ([]Feature, error) {
	db, err := openDB(ctx, p.dsn, p.maxConns)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, p.Query(), bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var features []Feature
	for n := 0; rows.Next(); n++ {
		var geom []byte
		values := make([]sql.NullString, len(cols)-1)
		dest := make([]any, len(cols))
		dest[0] = &geom
		for i := range values {
			dest[i+1] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		g, err := wkb.Unmarshal(geom)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry: %w", err)
		}

		attrs := make(map[string]string, len(values))
		for i, v := range values {
			col := cols[i+1]
			if !v.Valid || col == p.geomField {
				continue
			}
			attrs[col] = v.String
		}

		id := attrs[p.idField]
		if id == "" {
			id = strconv.Itoa(n + 1)
		}
		features = append(features, Feature{
			ID:         id,
			Geometry:   g,
			Attributes: attrs,
			// the label expression is already part of the query
			Label: attrs["name"],
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return features, nil
}
