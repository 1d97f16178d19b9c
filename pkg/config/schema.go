package config

// documentSchema constrains the shape of problem documents. Semantic checks
// (unknown types, arities, expression syntax) happen in model.Problem.Validate.
const documentSchema = `
#Name: =~"^[A-Za-z_][A-Za-z0-9_]*$"

#Parameter: {
	name: #Name
	type: #Name
}

#Scalar: bool | number | string

#Fluent: {
	name:     #Name
	params?:  [...#Parameter]
	kind?:    "bool" | "int" | "real"
	lower?:   number
	upper?:   number
	default?: #Scalar
}

#Effect: {
	fluent:     #Name
	args?:      [...string]
	value:      string & !=""
	op?:        "assign" | "increase" | "decrease"
	condition?: string
}

#Action: {
	name:           #Name
	parameters?:    [...#Parameter]
	preconditions?: [...string]
	effects?:       [...#Effect]
	bindings?:      {[string]: string}
}

#Problem: {
	name: string & !=""
	types?: [...{
		name:    #Name
		parent?: #Name
	}]
	objects?: [...{
		name: #Name
		type: #Name
	}]
	fluents?: [...#Fluent]
	actions?: [...#Action]
	init?: [...{
		fluent: #Name
		args?:  [...string]
		value:  #Scalar
	}]
	goals?: [...string]
}

#Planner: {
	restart_probability?:    number & >=0 & <1
	max_tries?:              int & >=0
	seed?:                   int & >=0
	no_consecutive_repeats?: bool
	timeout?:                =~"^[0-9]"
	max_plan_length?:        int & >0
}

#Document: {
	#Problem
	planner?: #Planner
}
`
