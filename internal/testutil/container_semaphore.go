// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// ContainerParallelEnv overrides the number of concurrent container operations
// allowed in tests.
const ContainerParallelEnv = "SIMPLENSM_TEST_CONTAINER_PARALLEL"

// ContainerSemaphore returns a process-wide buffered channel that limits concurrent
// container operations in tests. Acquire a slot by sending, release by receiving:
//
//	sem := testutil.ContainerSemaphore()
//	sem <- struct{}{}
//	defer func() { <-sem }()
//
// The capacity is SIMPLENSM_TEST_CONTAINER_PARALLEL when set, otherwise
// min(GOMAXPROCS, 2). Rootful Podman on small CI runners hangs instead of
// failing when too many containers start at once.
var ContainerSemaphore = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism(os.Getenv(ContainerParallelEnv)))
})

// AcquireContainerSlot blocks until a container slot is free and releases it
// when the test ends.
func AcquireContainerSlot(t interface{ Cleanup(func()) }) {
	sem := ContainerSemaphore()
	sem <- struct{}{}
	t.Cleanup(func() { <-sem })
}

// containerParallelism parses the override, falling back to min(GOMAXPROCS, 2).
func containerParallelism(override string) int {
	if override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return n
		}
	}
	return min(runtime.GOMAXPROCS(0), 2)
}
