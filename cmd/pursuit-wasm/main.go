//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"syscall/js"

	"pursuit-rl-go/internal/engine"
	"pursuit-rl-go/internal/logging"
)

var (
	startFnOnce sync.Once
	trainerMu   sync.Mutex
	currentCtx  context.CancelFunc
	onSnapshot  js.Value
)

// startRequest is the JSON accepted by pursuitStartTraining. Omitted
// hyperparameters keep engine.DefaultConfig values; Layout defaults to the small
// built-in maze.
type startRequest struct {
	engine.Config
	Layout   string `json:"layout"`
	EnvSteps int    `json:"envSteps"`
	Seed     int64  `json:"seed"`
	LogLevel string `json:"logLevel"`
}

func main() {
	registerCallbacks()
	// Prevent the program from exiting.
	select {}
}

func registerCallbacks() {
	startFnOnce.Do(func() {
		js.Global().Set("pursuitRegisterSnapshotHandler", js.FuncOf(registerSnapshotHandler))
		js.Global().Set("pursuitStartTraining", js.FuncOf(startTraining))
		js.Global().Set("pursuitStopTraining", js.FuncOf(stopTraining))
	})
}

func registerSnapshotHandler(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 || args[0].Type() != js.TypeFunction {
		fmt.Println("registerSnapshotHandler requires a function argument")
		return nil
	}
	onSnapshot = args[0]
	return nil
}

func startTraining(this js.Value, args []js.Value) interface{} {
	if len(args) == 0 {
		fmt.Println("startTraining requires a JSON config string")
		return nil
	}
	req := startRequest{Config: engine.DefaultConfig()}
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		fmt.Printf("invalid config: %v\n", err)
		return nil
	}
	if onSnapshot.IsUndefined() || onSnapshot.IsNull() {
		fmt.Println("snapshot handler not registered")
		return nil
	}
	trainer, err := newTrainer(req)
	if err != nil {
		fmt.Printf("cannot start training: %v\n", err)
		return nil
	}

	trainerMu.Lock()
	if currentCtx != nil {
		currentCtx()
	}
	ctx, cancel := context.WithCancel(context.Background())
	currentCtx = cancel
	trainerMu.Unlock()

	go func() {
		for snapshot := range trainer.Run(ctx) {
			onSnapshot.Invoke(snapshotToJS(snapshot))
		}
	}()
	return nil
}

func stopTraining(this js.Value, args []js.Value) interface{} {
	trainerMu.Lock()
	if currentCtx != nil {
		currentCtx()
		currentCtx = nil
	}
	trainerMu.Unlock()
	return nil
}

func newTrainer(req startRequest) (*engine.Trainer, error) {
	text := req.Layout
	if text == "" {
		text = engine.DefaultLayout
	}
	layout, err := engine.ParseLayout(text)
	if err != nil {
		return nil, err
	}
	if !layout.HasPolice || !layout.HasThief || !layout.HasGoal {
		return nil, fmt.Errorf("layout needs P, T and G markers")
	}
	steps := req.EnvSteps
	if steps <= 0 {
		steps = 200
	}
	logger := logging.New(req.LogLevel, "json", os.Stdout)
	starts := engine.StaticResetter{Police: layout.PoliceStart, Thief: layout.ThiefStart, Goal: layout.Goal}
	env, err := engine.NewEnvironment(layout.Maze, engine.NewLocalMover(layout.Maze, logger), starts, steps)
	if err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = 1
	}
	return engine.NewTrainer(env, nil, req.Config, rand.New(rand.NewSource(seed)), logger)
}

func snapshotToJS(snapshot engine.Snapshot) js.Value {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return js.ValueOf(map[string]interface{}{"status": engine.SnapshotFailed, "error": err.Error()})
	}
	payload := js.Global().Get("JSON").Call("parse", string(data))
	if snapshot.Err != nil {
		payload.Set("error", snapshot.Err.Error())
	}
	return payload
}
