/*
SPDX-FileCopyrightText: Copyright (c) 2026 tcpblast authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package loadgen

import (
	"fmt"
	"math/rand"
)

// sampleMessages is the fixed catalog of payload sentences. Workers pick
// from it uniformly at random, with replacement.
var sampleMessages = [...]string{
	"Hello from client",
	"Testing message priority",
	"High load test in progress",
	"Concurrent connection test",
	"Message processing verification",
	"Queue stress test",
	"Thread safety validation",
	"Server capacity test",
	"Network throughput check",
	"End-to-end latency measurement",
}

func randomMessage(rng *rand.Rand) string {
	return sampleMessages[rng.Intn(len(sampleMessages))]
}

// frameBurst tags a payload with the client id and per-client sequence
// number: "[Client-3][Msg-17] <text>\n".
func frameBurst(clientID, seq int, text string) string {
	return fmt.Sprintf("[Client-%d][Msg-%d] %s\n", clientID, seq, text)
}

// frameSustained tags a payload with the client id only: "[Client-3] <text>\n".
func frameSustained(clientID int, text string) string {
	return fmt.Sprintf("[Client-%d] %s\n", clientID, text)
}
