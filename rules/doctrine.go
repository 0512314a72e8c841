package rules

// Doctrine is a production posture. CompileDoctrine turns its numbers into
// a concrete rule set.
type Doctrine struct {
	Name string `yaml:"name"`

	// Workers: at least MinWorkers, at most MaxWorkers, one per
	// KarbonitePerWorker karbonite left on the map in between.
	MinWorkers         int `yaml:"min_workers"`
	MaxWorkers         int `yaml:"max_workers"`
	KarbonitePerWorker int `yaml:"karbonite_per_worker"`

	// Army composition: keep rangers below RangersPerWorker per worker and
	// add one mage per RangersPerMage rangers.
	RangersPerWorker int `yaml:"rangers_per_worker"`
	RangersPerMage   int `yaml:"rangers_per_mage"`
	// One knight (healer) per RangersPerKnight (RangersPerHealer) rangers;
	// zero disables them.
	RangersPerKnight int `yaml:"rangers_per_knight"`
	RangersPerHealer int `yaml:"rangers_per_healer"`

	// Rockets become available from RocketRound, one per RangersPerRocket
	// rangers plus one. Zero RocketRound disables rockets.
	RocketRound      int `yaml:"rocket_round"`
	RangersPerRocket int `yaml:"rangers_per_rocket"`
}

// DefaultDoctrine is the ranger-heavy posture the bot was tuned with.
func DefaultDoctrine() Doctrine {
	return Doctrine{
		Name:               "Rangers",
		MinWorkers:         6,
		MaxWorkers:         40,
		KarbonitePerWorker: 2 * 15 * 4,
		RangersPerWorker:   2,
		RangersPerMage:     4,
		RocketRound:        150,
		RangersPerRocket:   8,
	}
}

// Validate clamps fields to usable ranges.
func (d *Doctrine) Validate() {
	d.MinWorkers = max(1, d.MinWorkers)
	d.MaxWorkers = max(d.MinWorkers, d.MaxWorkers)
	d.KarbonitePerWorker = max(0, d.KarbonitePerWorker)
	d.RangersPerWorker = max(1, d.RangersPerWorker)
	d.RangersPerMage = max(1, d.RangersPerMage)
	d.RangersPerKnight = max(0, d.RangersPerKnight)
	d.RangersPerHealer = max(0, d.RangersPerHealer)
	d.RocketRound = max(0, d.RocketRound)
	d.RangersPerRocket = max(1, d.RangersPerRocket)
}
