// Serves the sync backend over the Redis protocol. Record payloads are read and written with the usual
// GET/SET/DEL verbs; the index and its maintenance operations are exposed through a handful of extra commands:
//
//	SET key value [param=value ...]   registers a record, optionally tagged with a page series
//	INDEX                             lists the index entries
//	PRUNE [lifetime]                  evicts records older than the lifetime ("2 days" when omitted)
//	CLEARSERIES param=value ...       evicts every page of one request series
//	FLUSHALL                          hard reset before a full re-synchronization

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/DikiCook/wp-calypso/pkg/store"
	"github.com/tidwall/redcon"
)

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeArray      []string // Writes an array of bulk strings if set.
	writeString     string   // Writes a string value if set.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisArray(values []string) redisOutput {
	if values == nil { // An empty result is still an array reply.
		values = []string{}
	}
	return redisOutput{writeArray: values}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

// parseParams converts "param=value" arguments into a params map. Arguments without '=' are rejected.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("expected param=value, got '%s'", arg)
		}
		params[name] = value
	}
	return params, nil
}

type redisHandler struct {
	ctx     context.Context
	backend *SyncBackend
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(ctx context.Context, backend *SyncBackend) (*redisHandler, error) {
	if backend == nil {
		return nil, errors.New("expected a non-nil sync backend")
	}
	return &redisHandler{ctx: ctx, backend: backend}, nil
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	switch strings.ToUpper(cmd.command) {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection("OK")
	case "SET":
		if len(cmd.args) < 2 {
			return writeRedisError(errors.New("wrong number of arguments for 'SET' command"))
		}
		key, value := cmd.args[0], cmd.args[1]
		params, err := parseParams(cmd.args[2:])
		if err != nil {
			return writeRedisError(err)
		}
		if err := rh.backend.PutRecord(rh.ctx, key, []byte(value), params); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString("OK")
	case "GET":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'GET' command"))
		}
		if value, err := rh.backend.GetRecord(rh.ctx, cmd.args[0]); errors.Is(err, store.ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		} else {
			return writeRedisString(string(value))
		}
	case "DEL":
		if len(cmd.args) < 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'DEL' command"))
		}
		deletedCount := 0
		for _, key := range cmd.args {
			if err := rh.backend.DeleteRecord(rh.ctx, key); err == nil {
				deletedCount++
			}
		}
		return writeRedisInt(deletedCount)
	case "KEYS":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'KEYS' command"))
		}
		keys, err := rh.backend.Keys(rh.ctx, cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisArray(keys)
	case "INDEX":
		entries, err := rh.backend.Index(rh.ctx)
		if err != nil {
			return writeRedisError(err)
		}
		lines := make([]string, 0, len(entries))
		for _, entry := range entries {
			lines = append(lines, entry.Key+" "+strconv.FormatInt(entry.Timestamp, 10)+" "+entry.GroupKey)
		}
		return writeRedisArray(lines)
	case "PRUNE":
		lifetime := cacheindex.DefaultLifetime
		if len(cmd.args) > 0 { // Multi-word lifetimes ("2 days") arrive as separate arguments.
			parsed, err := cacheindex.ParseLifetime(strings.Join(cmd.args, " "))
			if err != nil {
				return writeRedisError(err)
			}
			lifetime = parsed
		}
		if err := rh.backend.Prune(rh.ctx, lifetime); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString("OK")
	case "CLEARSERIES":
		if len(cmd.args) < 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'CLEARSERIES' command"))
		}
		params, err := parseParams(cmd.args)
		if err != nil {
			return writeRedisError(err)
		}
		if err := rh.backend.ClearSeries(rh.ctx, params); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString("OK")
	case "FLUSHALL":
		if err := rh.backend.ClearAll(rh.ctx); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString("OK")
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// writeOutput renders a redisOutput onto the connection.
func writeOutput(conn redcon.Conn, output redisOutput) {
	switch {
	case output.closeConnection:
		conn.WriteString(output.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("failed to close connection", "error", err)
		}
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeArray != nil:
		conn.WriteArray(len(output.writeArray))
		for _, value := range output.writeArray {
			conn.WriteBulkString(value)
		}
	default:
		conn.WriteString(output.writeString)
	}
}

// RunRedisServer starts a Redis protocol server that interacts with the provided sync backend.
func RunRedisServer(ctx context.Context, backend *SyncBackend) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(ctx, backend)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			writeOutput(conn, redisHandler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
			// Nothing to clean up per connection.
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		serverErr := redisServer.Close()
		backendErr := backend.Close()
		if exitErr := errors.Join(serverErr, backendErr); exitErr != nil {
			return fmt.Errorf("failed to close sync handler: %w", exitErr)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
