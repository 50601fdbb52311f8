package pregel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// recordedIOExtraKey is the CheckpointMetadata.Extra key under which a
// superstep's RecordedIO entries are persisted, so WithReplayMode runs can
// recover them from a checkpoint without the wire format naming them
// explicitly (spec §6.2 fixes the checkpoint's own field names; Extra is
// its documented escape hatch).
const recordedIOExtraKey = "recorded_io"

// RecordedIO captures one external interaction (an LLM call, a tool
// invocation) a Recordable node performed, so a later WithReplayMode run
// can return the same response without re-invoking the external service.
//
// Recordings are matched by (NodeID, Attempt): a node retried under a
// RetryPolicy gets a distinct recording per attempt, since a retry may have
// observed a different response than the one before it.
type RecordedIO struct {
	NodeID    string          `json:"node_id"`
	Attempt   int             `json:"attempt"`
	Request   json.RawMessage `json:"request"`
	Response  json.RawMessage `json:"response"`
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Duration  time.Duration   `json:"duration"`
}

// recordIO serializes request/response and hashes the response, for a
// Recordable node to attach to its Command.Recordings.
func recordIO(nodeID string, attempt int, request, response any) (RecordedIO, error) {
	start := time.Now()

	requestJSON, err := json.Marshal(request)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("pregel: marshaling replay request: %w", err)
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return RecordedIO{}, fmt.Errorf("pregel: marshaling replay response: %w", err)
	}

	return RecordedIO{
		NodeID:    nodeID,
		Attempt:   attempt,
		Request:   requestJSON,
		Response:  responseJSON,
		Hash:      hashResponse(responseJSON),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}, nil
}

func hashResponse(responseJSON []byte) string {
	sum := sha256.Sum256(responseJSON)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// lookupRecordedIO finds the recording for (nodeID, attempt) among a
// checkpoint's carried-forward recordings.
func lookupRecordedIO(recordings []RecordedIO, nodeID string, attempt int) (RecordedIO, bool) {
	for _, rec := range recordings {
		if rec.NodeID == nodeID && rec.Attempt == attempt {
			return rec, true
		}
	}
	return RecordedIO{}, false
}

// verifyReplayHash checks a live response against a RecordedIO's hash,
// surfacing ErrReplayMismatch if the node turned out not to be
// deterministic (stale wall-clock reads, unseeded randomness, map iteration
// leaking into output). Only meaningful under WithStrictReplay.
func verifyReplayHash(recorded RecordedIO, actualResponse any) error {
	actualJSON, err := json.Marshal(actualResponse)
	if err != nil {
		return fmt.Errorf("pregel: marshaling replay verification response: %w", err)
	}
	actualHash := hashResponse(actualJSON)
	if actualHash != recorded.Hash {
		return fmt.Errorf("%w: node %s attempt %d: expected %s, got %s",
			ErrReplayMismatch, recorded.NodeID, recorded.Attempt, recorded.Hash, actualHash)
	}
	return nil
}

// recordingsFromMetadata decodes the RecordedIO slice a previous superstep
// attached to CheckpointMetadata.Extra, tolerating its absence (a checkpoint
// from a run with replay disabled, or the thread's first checkpoint).
func recordingsFromMetadata(meta CheckpointMetadata) []RecordedIO {
	raw, ok := meta.Extra[recordedIOExtraKey]
	if !ok {
		return nil
	}
	// raw arrives as whatever encoding/json produced when the checkpoint
	// was originally decoded (map[string]any / []any trees), so round-trip
	// it through JSON once more to land back on []RecordedIO.
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var recordings []RecordedIO
	if err := json.Unmarshal(blob, &recordings); err != nil {
		return nil
	}
	return recordings
}

// mergeRecordings folds a superstep's fresh RecordedIO entries over
// whatever the prior checkpoint carried, keyed by (NodeID, Attempt), so a
// later attempt's recording replaces an earlier one but unrelated node
// recordings survive across supersteps.
func mergeRecordings(prior []RecordedIO, fresh []RecordedIO) []RecordedIO {
	if len(fresh) == 0 {
		return prior
	}
	type key struct {
		node    string
		attempt int
	}
	index := make(map[key]int, len(prior))
	out := append([]RecordedIO(nil), prior...)
	for i, r := range out {
		index[key{r.NodeID, r.Attempt}] = i
	}
	for _, r := range fresh {
		k := key{r.NodeID, r.Attempt}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// extraForRecordings builds a CheckpointMetadata.Extra map carrying
// recordings forward, or nil if there are none to carry, so a checkpoint
// with no replay activity doesn't grow an empty Extra map.
func extraForRecordings(recordings []RecordedIO) map[string]any {
	if len(recordings) == 0 {
		return nil
	}
	return map[string]any{recordedIOExtraKey: recordings}
}

// Fork copies the checkpoint addressed by fromCheckpointID into a brand
// new thread, newThreadID, as that thread's sole (parentless) checkpoint.
// This is the time-travel primitive: GetStateHistory finds a past
// checkpoint id, Fork branches a new lineage from it, and Run or
// ExecuteSuperstep continue that lineage independently of the original
// thread. Per the documented resolution of the pending-write GC question, a
// fork never inherits pending writes attached to checkpoints after the fork
// point; it only ever sees its own lineage's pending writes.
func (g *Graph) Fork(ctx context.Context, threadID, fromCheckpointID, newThreadID string) (string, error) {
	tuple, err := g.saver.GetTuple(ctx, CheckpointConfig{ThreadID: threadID, ID: fromCheckpointID})
	if err != nil {
		return "", err
	}

	forked := tuple.Checkpoint
	forked.Metadata.Source = "fork"
	forked.Metadata.Parents = nil

	if err := g.saver.Put(ctx, CheckpointConfig{ThreadID: newThreadID}, forked, ""); err != nil {
		return "", &CheckpointError{Message: "persisting forked checkpoint", Cause: err}
	}
	return forked.ID, nil
}
