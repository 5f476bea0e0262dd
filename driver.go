package dashcache

// Driver identifies cache backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverLRU       Driver = "lru"
	DriverMemory    Driver = "memory"
	DriverRistretto Driver = "ristretto"
	DriverRedis     Driver = "redis"
	DriverNATS      Driver = "nats"
	DriverSQL       Driver = "sql"
	DriverDynamo    Driver = "dynamodb"
	DriverTiered    Driver = "tiered"
)
