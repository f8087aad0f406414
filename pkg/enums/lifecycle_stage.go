package enums

// LifecycleStage records how far a place deletion progressed. Stages only
// move forward.
type LifecycleStage string

const (
	LifecycleStagePending       LifecycleStage = "pending"
	LifecycleStageRecordDeleted LifecycleStage = "record_deleted"
	LifecycleStageScoresSettled LifecycleStage = "scores_settled"
	LifecycleStageScoresFailed  LifecycleStage = "scores_failed"
	LifecycleStageBlobsPurged   LifecycleStage = "blobs_purged"
)

func (s LifecycleStage) String() string {
	return string(s)
}
