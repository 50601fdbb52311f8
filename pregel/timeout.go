package pregel

import (
	"context"
	"fmt"
	"time"
)

// getNodeTimeout resolves the timeout to apply for one task, by precedence:
// the node's own NodePolicy.Timeout, then the graph-wide default, then no
// timeout at all.
func getNodeTimeout(policy *NodePolicy, defaultTimeout time.Duration) time.Duration {
	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// runNodeWithTimeout wraps one task's node invocation with timeout
// enforcement, converting a context.DeadlineExceeded into a NodeError the
// retry policy can inspect.
func runNodeWithTimeout(ctx context.Context, node Node, rt *Runtime, input any, policy *NodePolicy, defaultTimeout time.Duration) (Command, error) {
	timeout := getNodeTimeout(policy, defaultTimeout)
	if timeout == 0 {
		return node.Run(ctx, rt, input)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := node.Run(timeoutCtx, rt, input)
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return cmd, &NodeError{
			Message:   fmt.Sprintf("node %s exceeded timeout of %v", rt.NodeName, timeout),
			Code:      "NODE_TIMEOUT",
			NodeName:  rt.NodeName,
			Retryable: true,
			Cause:     err,
		}
	}
	return cmd, err
}
