package config

type WorkerKeyStruct struct {
	PersistFlagsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistFlagsQueue: "persist_flags_queue",
}
