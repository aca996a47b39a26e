package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	RescoreQueue           string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
	RescoreQueue:           "rescore_plagiarism_queue",
}
