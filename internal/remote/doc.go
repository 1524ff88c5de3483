// Package remote runs the browser remote sessions.
//
// A Bridge owns one job queue and one worker. Every decoded client command
// and every timelapse tick becomes a job, so the camera sees one request at
// a time in arrival order. Serve attaches a websocket to the Bridge: the
// reader decodes binary frames into jobs and the writer turns hub events
// into binary packets.
package remote
