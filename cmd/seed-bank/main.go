package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/logger"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/xuri/excelize/v2"
)

type sampleQuestion struct {
	text    string
	img     string
	options [4]string
	correct string
}

var sampleQuestions = []sampleQuestion{
	{"What is the unit of electrical resistance?", "", [4]string{"Ohm", "Volt", "Ampere", "Watt"}, "Ohm"},
	{"Which component stores energy in an electric field?", "", [4]string{"Capacitor", "Inductor", "Resistor", "Diode"}, "Capacitor"},
	{"Ohm's law relates voltage, current and what?", "", [4]string{"Resistance", "Power", "Frequency", "Charge"}, "Resistance"},
	{"What does an ammeter measure?", "", [4]string{"Current", "Voltage", "Resistance", "Power"}, "Current"},
	{"Two 10 ohm resistors in series give a total of?", "series.png", [4]string{"20 ohm", "5 ohm", "10 ohm", "100 ohm"}, "20 ohm"},
	{"Two 10 ohm resistors in parallel give a total of?", "parallel.png", [4]string{"5 ohm", "20 ohm", "10 ohm", "1 ohm"}, "5 ohm"},
	{"Which logic gate outputs 1 only when all inputs are 1?", "", [4]string{"AND", "OR", "XOR", "NOR"}, "AND"},
	{"What is the binary representation of decimal 5?", "", [4]string{"101", "110", "111", "100"}, "101"},
	{"Mains frequency in most of Asia and Europe is?", "", [4]string{"50 Hz", "60 Hz", "100 Hz", "25 Hz"}, "50 Hz"},
	{"A diode allows current to flow in how many directions?", "", [4]string{"One", "Two", "None", "Four"}, "One"},
	{"Power dissipated by a resistor is V times?", "", [4]string{"I", "R", "V", "t"}, "I"},
	{"Which material is a semiconductor?", "", [4]string{"Silicon", "Copper", "Glass", "Rubber"}, "Silicon"},
}

func main() {
	cfg := config.Load()

	var (
		questions int
		students  int
		hash      bool
		force     bool
	)
	flag.IntVar(&questions, "questions", 20, "Number of questions to write")
	flag.IntVar(&students, "students", 30, "Number of roster entries to write")
	flag.BoolVar(&hash, "hash", false, "Store bcrypt hashes in the roster and print plaintext passwords")
	flag.BoolVar(&force, "force", false, "Overwrite existing files")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	fmt.Println("=== Seeding Question Bank and Roster ===")

	for _, path := range []string{cfg.QuestionsFile, cfg.StudentsFile} {
		if _, err := os.Stat(path); err == nil && !force {
			log.Fatal().Str("file", path).Msg("File exists; pass -force to overwrite")
		}
	}

	if err := writeQuestions(cfg.QuestionsFile, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to write question bank")
	}
	fmt.Printf("Wrote %d questions to %s\n", questions, cfg.QuestionsFile)

	auth := service.NewAuthService(cfg)
	if err := writeRoster(cfg.StudentsFile, students, hash, auth, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to write roster")
	}
	fmt.Printf("Wrote %d students to %s\n", students, cfg.StudentsFile)

	if questions < cfg.NumQuestions {
		fmt.Printf("Warning: NUM_QUESTIONS is %d but the bank has %d questions\n", cfg.NumQuestions, questions)
	}
	fmt.Println("\nSeed completed!")
}

func writeQuestions(path string, n int) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"id", "question", "img", "option1", "option2", "option3", "option4", "correct"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		q := question(i)
		row := []interface{}{i + 1, q.text, q.img, q.options[0], q.options[1], q.options[2], q.options[3], q.correct}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return save(f, path)
}

// question returns the i-th sample; past the fixed list it generates arithmetic items.
func question(i int) sampleQuestion {
	if i < len(sampleQuestions) {
		return sampleQuestions[i]
	}
	a, b := i+3, 2*i+1
	sum := a + b
	return sampleQuestion{
		text:    fmt.Sprintf("Resistors of %d ohm and %d ohm are in series. What is the total resistance?", a, b),
		options: [4]string{fmt.Sprintf("%d ohm", sum), fmt.Sprintf("%d ohm", sum+1), fmt.Sprintf("%d ohm", a), fmt.Sprintf("%d ohm", b)},
		correct: fmt.Sprintf("%d ohm", sum),
	}
}

func writeRoster(path string, n int, hash bool, auth *service.AuthService, log zerolog.Logger) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"roll_no", "password"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if hash {
		fmt.Println("\nroll_no\tpassword")
	}
	for i := 0; i < n; i++ {
		rollNo := fmt.Sprintf("2021-EE-%03d", i+1)
		password := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		stored := password
		if hash {
			h, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			stored = h
			fmt.Printf("%s\t%s\n", rollNo, password)
		}
		row := []interface{}{rollNo, stored}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		if (i+1)%10 == 0 {
			log.Debug().Int("students", i+1).Msg("Roster progress")
		}
	}
	return save(f, path)
}

func save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}
