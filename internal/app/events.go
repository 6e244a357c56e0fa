package app

import "voicedesk/internal/session"

type eventType int

const (
	evKeyDown eventType = iota + 1
	evKeyUp
	evCaptureTimeout // потолок длительности захвата истёк
	evDone           // воркер обработки завершился
)

// event единица работы координационного цикла. gen выставляется для
// таймаутов и завершений: события чужих поколений цикл отбрасывает.
type event struct {
	typ  eventType
	kind session.Kind
	gen  uint64
}
