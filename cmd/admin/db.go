package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	tick := fs.Uint64("tick", 0, "tick filter (0 = all)")
	limit := fs.Int("limit", 20, "result limit")
	clientID := fs.String("client", "", "client_id filter (edits)")
	actor := fs.String("actor", "", "actor filter (audits)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,seed,height,chunks,wires,switches FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Path     string `json:"path"`
				Seed     int64  `json:"seed"`
				Height   int    `json:"height"`
				Chunks   int    `json:"chunks"`
				Wires    int    `json:"wires"`
				Switches int    `json:"switches"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Seed, &r.Height, &r.Chunks, &r.Wires, &r.Switches); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		finishRows(rows)

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,joins,leaves,edits FROM ticks ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Digest string `json:"digest"`
				Joins  int    `json:"joins"`
				Leaves int    `json:"leaves"`
				Edits  int    `json:"edits"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Edits); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		finishRows(rows)

	case "edits":
		where, args := filters(*tick, "client_id", *clientID)
		rows, err := db.Query(`SELECT tick,seq,client_id,action,x,y,z,block,code FROM edits`+where+` ORDER BY tick DESC, seq DESC LIMIT ?`, append(args, *limit)...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Seq      int    `json:"seq"`
				ClientID string `json:"client_id"`
				Action   string `json:"action"`
				X        int    `json:"x"`
				Y        int    `json:"y"`
				Z        int    `json:"z"`
				Block    string `json:"block,omitempty"`
				Code     string `json:"code,omitempty"`
			}
			var block, code sql.NullString
			if err := rows.Scan(&r.Tick, &r.Seq, &r.ClientID, &r.Action, &r.X, &r.Y, &r.Z, &block, &code); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Block, r.Code = block.String, code.String
			printJSON(r)
		}
		finishRows(rows)

	case "audits":
		where, args := filters(*tick, "actor", *actor)
		rows, err := db.Query(`SELECT tick,seq,actor,action,x,y,z,from_block,to_block,reason FROM audits`+where+` ORDER BY tick DESC, seq DESC LIMIT ?`, append(args, *limit)...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Seq    int    `json:"seq"`
				Actor  string `json:"actor"`
				Action string `json:"action"`
				X      int    `json:"x"`
				Y      int    `json:"y"`
				Z      int    `json:"z"`
				From   string `json:"from"`
				To     string `json:"to"`
				Reason string `json:"reason,omitempty"`
			}
			var reason sql.NullString
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.X, &r.Y, &r.Z, &r.From, &r.To, &reason); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Reason = reason.String
			printJSON(r)
		}
		finishRows(rows)

	case "settles":
		rows, err := db.Query(`SELECT tick,count,wires_set,block_updates,shape_updates FROM settles ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick         int64 `json:"tick"`
				Count        int64 `json:"count"`
				WiresSet     int64 `json:"wires_set"`
				BlockUpdates int64 `json:"block_updates"`
				ShapeUpdates int64 `json:"shape_updates"`
			}
			if err := rows.Scan(&r.Tick, &r.Count, &r.WiresSet, &r.BlockUpdates, &r.ShapeUpdates); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		finishRows(rows)

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		finishRows(rows)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-tick T] [-client C] [-actor A] snapshots|ticks|edits|audits|settles|catalogs")
		os.Exit(2)
	}
}

// filters builds the WHERE clause for the optional tick and string
// filters of the edits/audits queries.
func filters(tick uint64, col, val string) (string, []any) {
	var conds []string
	var args []any
	if tick != 0 {
		conds = append(conds, "tick=?")
		args = append(args, int64(tick))
	}
	if strings.TrimSpace(val) != "" {
		conds = append(conds, col+"=?")
		args = append(args, strings.TrimSpace(val))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func finishRows(rows *sql.Rows) {
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
