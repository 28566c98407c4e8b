package httpapi

import contractx "github.com/cyberforge26/firmware-forge/agent/contract"

// exampleTemplates ships a small set of ready-to-submit specifications
// for the frontend's "load an example" affordance. original_source's
// backend_api read these from an examples/ directory of JSON files;
// none were carried into this workspace, so they're declared inline.
var exampleTemplates = map[string]contractx.Specification{
	"uart_i2c_sensor_bridge": {
		ProjectName: "uart_i2c_sensor_bridge",
		MCU:         "STM32F407VG",
		Description: "Bridges sensor readings from an I2C temperature sensor onto a UART telemetry link.",
		Modules: []contractx.Module{
			{ID: "uart_telemetry", Type: contractx.ModuleUART, Description: "115200 baud telemetry output"},
			{ID: "i2c_sensor", Type: contractx.ModuleI2C, Description: "Reads a temperature sensor over I2C1"},
		},
		OptimizationGoal: contractx.OptimizationBalanced,
	},
	"can_motor_controller": {
		ProjectName: "can_motor_controller",
		MCU:         "STM32F103C8",
		Description: "Receives motor setpoints over CAN and drives a PWM motor controller.",
		Modules: []contractx.Module{
			{ID: "can_bus", Type: contractx.ModuleCAN, Description: "Receives setpoint frames on CAN1"},
			{ID: "motor_pwm", Type: contractx.ModulePWM, Description: "Drives a motor controller from setpoints"},
		},
		SafetyCritical:   true,
		OptimizationGoal: contractx.OptimizationPerformance,
	},
	"watchdog_flash_logger": {
		ProjectName: "watchdog_flash_logger",
		MCU:         "ATmega328P",
		Description: "Logs ADC samples to flash with a watchdog guarding against lockups.",
		Modules: []contractx.Module{
			{ID: "adc_sampler", Type: contractx.ModuleADC, Description: "Periodic ADC sampling"},
			{ID: "flash_log", Type: contractx.ModuleFlash, Description: "Appends samples to onboard flash"},
			{ID: "watchdog", Type: contractx.ModuleWatchdog, Description: "Resets the MCU on lockup"},
		},
		OptimizationGoal: contractx.OptimizationSize,
	},
}
