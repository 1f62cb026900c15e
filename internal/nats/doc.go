// Package nats wires the camera node into a NATS fabric.
//
// Three pieces cooperate:
//
//   - Server embeds a NATS server so a node works standalone on an
//     appliance; remote consumers connect straight to the node.
//   - Client publishes detection results and capture notices for one
//     device, and receives detection start/stop commands. It degrades
//     gracefully: with no NATS reachable, publishes are dropped and the
//     node keeps serving HTTP.
//   - Bridge forwards camera subjects from NATS back onto the local
//     event bus so SSE clients see traffic from every node.
//
// # Subjects
//
//	camnode.cameras.<device>.detections   detection results, one JSON message per frame
//	camnode.cameras.<device>.captures     still-capture notices
//	camnode.control.<device>.detection    start/stop commands for the detection session
//
// <device> is derived from the device path: /dev/video0 -> video0.
//
// # Detection payload
//
//	{"ts":1738000000123,"width":800,"height":640,
//	 "faces":[{"x":120,"y":80,"w":96,"h":96,"score":0.97}]}
package nats
